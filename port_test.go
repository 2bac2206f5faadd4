package serialmcp

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestOpenPortNonexistentDevice(t *testing.T) {
	_, err := OpenPort("/dev/ttyDOESNOTEXIST99", DefaultConfig())
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestMapOpenError(t *testing.T) {
	tests := []struct {
		name  string
		errno error
		want  error
	}{
		{"enoent", unix.ENOENT, ErrDeviceNotFound},
		{"enodev", unix.ENODEV, ErrDeviceNotFound},
		{"enxio", unix.ENXIO, ErrDeviceNotFound},
		{"eacces", unix.EACCES, ErrPermissionDenied},
		{"eperm", unix.EPERM, ErrPermissionDenied},
		{"ebusy", unix.EBUSY, ErrDeviceInUse},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := mapOpenError(test.errno); !errors.Is(got, test.want) {
				t.Errorf("mapOpenError(%v): expected %v, got %v", test.errno, test.want, got)
			}
		})
	}

	// Unknown errnos pass through untouched.
	if got := mapOpenError(unix.EIO); !errors.Is(got, unix.EIO) {
		t.Errorf("Expected EIO to pass through, got %v", got)
	}
}

func TestBaudConstant(t *testing.T) {
	tests := []struct {
		rate int
		want uint32
	}{
		{9600, unix.B9600},
		{115200, unix.B115200},
		{230400, unix.B230400},
		{4000000, unix.B4000000},
	}

	for _, test := range tests {
		got, err := baudConstant(test.rate)
		if err != nil {
			t.Errorf("baudConstant(%d) failed: %v", test.rate, err)
			continue
		}
		if got != test.want {
			t.Errorf("baudConstant(%d): expected %#x, got %#x", test.rate, test.want, got)
		}
	}

	if _, err := baudConstant(123456); !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected ErrInvalidBaudRate for 123456, got %v", err)
	}
}

func TestClosedPortOperations(t *testing.T) {
	p := &ttyPort{fd: -1, closed: true}

	if _, err := p.Write([]byte("x")); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Write on closed port: expected ErrPortClosed, got %v", err)
	}
	if _, err := p.ReadAvailable(16); !errors.Is(err, ErrPortClosed) {
		t.Errorf("ReadAvailable on closed port: expected ErrPortClosed, got %v", err)
	}
	if err := p.FlushInput(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("FlushInput on closed port: expected ErrPortClosed, got %v", err)
	}
	if err := p.FlushOutput(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("FlushOutput on closed port: expected ErrPortClosed, got %v", err)
	}
	if p.IsOpen() {
		t.Error("IsOpen on closed port should be false")
	}
	if err := p.Close(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Double close: expected ErrPortClosed, got %v", err)
	}
}
