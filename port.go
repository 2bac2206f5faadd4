package serialmcp

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Port is the byte-level connection owned by a driver. Exactly one reader
// loop consumes it; the driver serializes writes around it.
type Port interface {
	// Write writes data and waits until the kernel has transmitted it.
	Write(data []byte) (int, error)
	// ReadAvailable returns up to max bytes currently buffered by the OS.
	// It never blocks; an empty slice means nothing is pending.
	ReadAvailable(max int) ([]byte, error)
	FlushInput() error
	FlushOutput() error
	IsOpen() bool
	Close() error
}

// Opener opens a device path with the given frame configuration. The driver
// uses OpenPort by default; tests and alternative transports substitute
// their own.
type Opener func(device string, cfg Config) (Port, error)

// ttyPort is the termios-backed implementation of Port
type ttyPort struct {
	mu     sync.RWMutex
	fd     int
	closed bool
}

var _ Port = (*ttyPort)(nil)

// OpenPort opens a serial device and applies the frame settings from cfg.
func OpenPort(device string, cfg Config) (Port, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, mapOpenError(err))
	}

	if err := configureTTY(fd, cfg); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", device, err)
	}

	return &ttyPort{fd: fd}, nil
}

// mapOpenError translates OS-level open failures into package errors so
// callers can use errors.Is instead of matching errno values.
func mapOpenError(err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return ErrDeviceNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return ErrPermissionDenied
	case errors.Is(err, unix.EBUSY):
		return ErrDeviceInUse
	default:
		return err
	}
}

// configureTTY puts the descriptor in raw mode and applies the frame settings
func configureTTY(fd int, cfg Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	// Raw mode, receiver on, ignore modem control lines
	termios.Cflag = unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	// VMIN=0/VTIME=0: reads return immediately with whatever is buffered.
	// ReadAvailable pairs this with a TIOCINQ poll.
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	baud, err := baudConstant(cfg.BaudRate)
	if err != nil {
		return err
	}
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	switch cfg.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	case 8, 0:
		termios.Cflag |= unix.CS8
	default:
		return ErrInvalidConfig
	}

	if cfg.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch cfg.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	}

	switch cfg.FlowControl {
	case FlowControlRTSCTS:
		termios.Cflag |= unix.CRTSCTS
	case FlowControlXONXOFF:
		termios.Iflag |= unix.IXON | unix.IXOFF
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}

	return nil
}

// Write writes data to the serial port and drains the kernel output queue so
// the bytes are on the wire when it returns.
func (p *ttyPort) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.Write(p.fd, data)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	if err := unix.IoctlSetInt(p.fd, unix.TCSBRK, 1); err != nil {
		return n, fmt.Errorf("drain: %w", err)
	}
	return n, nil
}

// ReadAvailable polls the input queue depth and reads up to max of what is
// already buffered. It returns a nil slice, not an error, when the line is
// silent.
func (p *ttyPort) ReadAvailable(max int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPortClosed
	}

	avail, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return nil, fmt.Errorf("poll input queue: %w", err)
	}
	if avail == 0 {
		return nil, nil
	}
	if avail > max {
		avail = max
	}

	buf := make([]byte, avail)
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return nil, nil
		}
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf[:n], nil
}

// FlushInput discards any unread input data
func (p *ttyPort) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)
}

// FlushOutput discards any unwritten output data
func (p *ttyPort) FlushOutput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCOFLUSH)
}

// IsOpen reports whether the descriptor is still usable
func (p *ttyPort) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// Close closes the serial port. Closing twice returns ErrPortClosed.
func (p *ttyPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	err := unix.Close(p.fd)
	p.closed = true
	return err
}

// baudConstant converts an integer baud rate to the unix constant
func baudConstant(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}
