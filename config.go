package serialmcp

import "time"

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
	FlowControlXONXOFF
)

// Config holds the configuration for a driver and the ports it opens
type Config struct {
	// Serial frame settings applied on open
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl

	// IdleTimeout is the silence duration after which an in-progress
	// notification buffer is considered a complete message and flushed.
	IdleTimeout time.Duration

	// PollInterval is the reader loop cadence. It bounds both CPU usage and
	// the latency of mode-change observation, so keep it well below
	// IdleTimeout.
	PollInterval time.Duration

	// ChunkSize caps the bytes read per loop iteration so a large transfer
	// cannot displace time-critical framing checks.
	ChunkSize int

	// SyncTimeout is the default deadline for synchronous exchanges when the
	// caller does not supply one.
	SyncTimeout time.Duration

	// NotifyCapacity bounds the notification queue. Pushing beyond it drops
	// the newest message and increments the overflow counter.
	NotifyCapacity int

	// ReconnectAttempts and ReconnectDelay bound the automatic reopen
	// performed by the reader loop when an open port starts failing reads.
	// Zero attempts disables reconnection.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Option is a functional option for configuring a driver
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaudRate:          115200,
		DataBits:          8,
		StopBits:          1,
		Parity:            ParityNone,
		FlowControl:       FlowControlNone,
		IdleTimeout:       100 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		ChunkSize:         1024,
		SyncTimeout:       5 * time.Second,
		NotifyCapacity:    1000,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Second,
	}
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if _, err := baudConstant(rate); err != nil {
			return err
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		c.FlowControl = fc
		return nil
	}
}

// WithIdleTimeout sets the silence duration that delimits notification messages
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return ErrInvalidConfig
		}
		c.IdleTimeout = d
		return nil
	}
}

// WithPollInterval sets the reader loop cadence
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return ErrInvalidConfig
		}
		c.PollInterval = d
		return nil
	}
}

// WithChunkSize caps the bytes read per reader iteration
func WithChunkSize(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.ChunkSize = n
		return nil
	}
}

// WithSyncTimeout sets the default synchronous exchange deadline
func WithSyncTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return ErrInvalidConfig
		}
		c.SyncTimeout = d
		return nil
	}
}

// WithNotifyCapacity bounds the notification queue
func WithNotifyCapacity(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.NotifyCapacity = n
		return nil
	}
}

// WithReconnect configures automatic reopen after read failures on an open
// port. Zero attempts disables reconnection.
func WithReconnect(attempts int, delay time.Duration) Option {
	return func(c *Config) error {
		if attempts < 0 || delay < 0 {
			return ErrInvalidConfig
		}
		c.ReconnectAttempts = attempts
		c.ReconnectDelay = delay
		return nil
	}
}
