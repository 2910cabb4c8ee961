package programmer

import (
	"time"

	"github.com/TaeronKW/tpiflash/nvm"
)

// Config holds the session configuration.
type Config struct {
	// ReadTimeout bounds the wait for the next stream byte.
	ReadTimeout time.Duration

	// DrainWindow is how long a failed load keeps discarding the
	// remaining stream before giving up.
	DrainWindow time.Duration

	// BusyTimeout bounds NVM busy polling.
	BusyTimeout time.Duration

	// EnableTimeout bounds the wait for the NVM interface to unlock.
	EnableTimeout time.Duration

	// Progress is called after each flushed write group (optional).
	Progress ProgressCallback

	// Logger receives session events (optional).
	Logger Logger
}

func defaultConfig() Config {
	return Config{
		ReadTimeout:   3 * time.Second,
		DrainWindow:   300 * time.Millisecond,
		BusyTimeout:   nvm.DefaultBusyTimeout,
		EnableTimeout: nvm.DefaultEnableTimeout,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithReadTimeout bounds how long the loader waits for the next input byte.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReadTimeout = d
		}
	}
}

// WithDrainWindow sets the grace window for discarding a failed stream.
func WithDrainWindow(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.DrainWindow = d
		}
	}
}

// WithBusyTimeout bounds NVM busy-bit polling.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.BusyTimeout = d
		}
	}
}

// WithEnableTimeout bounds the wait for the NVM-enabled status bit.
func WithEnableTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.EnableTimeout = d
		}
	}
}

// WithProgress sets a callback reporting bytes written as groups flush.
func WithProgress(cb ProgressCallback) Option {
	return func(c *Config) {
		c.Progress = cb
	}
}

// WithLogger sets a logger for session events.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Progress is a snapshot of a running programming session.
type Progress struct {
	BytesWritten int
	Elapsed      time.Duration
}

// ProgressCallback is invoked after each flushed write group. It should
// return quickly; the link is idle while it runs.
type ProgressCallback func(Progress)

// Logger lets the session report events through any logging framework.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
