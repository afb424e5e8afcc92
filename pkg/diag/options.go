package diag

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultTimeout bounds the wait for the acknowledgment frame.
	DefaultTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds the bulk write of the command frame.
	DefaultWriteTimeout = 2 * time.Second

	// DefaultMaxFrameSize is the transmit buffer handed to the frame encoder.
	DefaultMaxFrameSize = 4096

	// DefaultReadSize is the length of each bulk IN request.
	DefaultReadSize = 4096
)

// Config holds the Switcher configuration.
type Config struct {
	// Timeout bounds the acknowledgment read
	Timeout time.Duration

	// WriteTimeout bounds the command write
	WriteTimeout time.Duration

	// Command is the payload that asks the device to reboot into EDL
	Command []byte

	// Ack is the payload a device answers with when it accepted Command
	Ack []byte

	// MaxFrameSize is the size of the buffer the command is framed into
	MaxFrameSize int

	// ReadSize is the buffer length of each bulk IN transfer
	ReadSize int

	Logger    *slog.Logger
	Tracer    Tracer
	StateHook func(State)
}

func defaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		WriteTimeout: DefaultWriteTimeout,
		Command:      EDLCommand(),
		Ack:          EDLAck(),
		MaxFrameSize: DefaultMaxFrameSize,
		ReadSize:     DefaultReadSize,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option is a functional option for configuring the Switcher.
type Option func(*Config)

// WithTimeout sets how long to wait for the acknowledgment.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithWriteTimeout sets the bound on the command write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.WriteTimeout = timeout
		}
	}
}

// WithCommand replaces the EDL command and its expected acknowledgment.
//
// Example:
//
//	sw := diag.New(bus, diag.WithCommand([]byte{0x3A}, []byte{0x3A}))
func WithCommand(cmd, ack []byte) Option {
	return func(c *Config) {
		c.Command = append([]byte(nil), cmd...)
		c.Ack = append([]byte(nil), ack...)
	}
}

// WithMaxFrameSize sets the transmit buffer size. A command whose worst case
// frame does not fit fails with KindFrameEncodeOverflow. Negative sizes
// count as zero.
func WithMaxFrameSize(size int) Option {
	return func(c *Config) {
		c.MaxFrameSize = max(size, 0)
	}
}

// WithReadSize sets the length of each bulk IN request.
func WithReadSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ReadSize = size
		}
	}
}

// WithLogger sets the status sink. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithTracer receives a copy of every frame exchanged with the device.
func WithTracer(t Tracer) Option {
	return func(c *Config) {
		c.Tracer = t
	}
}

// WithStateHook is called on every state transition of SwitchToEDL.
func WithStateHook(hook func(State)) Option {
	return func(c *Config) {
		c.StateHook = hook
	}
}
