package uart

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-arqlink/link"
	"github.com/arloliu/go-arqlink/logger"
)

// Default values of the serial runtime.
const (
	DefaultBaudRate       = 115200
	DefaultReadBufferSize = 256
	DefaultSendQueueSize  = 16
	DefaultSendTimeout    = 3 * time.Second
	DefaultCloseTimeout   = 3 * time.Second
)

// Range limits.
const (
	MinBaudRate = 300
	MaxBaudRate = 4000000

	MinReadBufferSize = 16
	MaxReadBufferSize = 64 * 1024

	MaxSendQueueSize = 4096

	MinTimeout = 10 * time.Millisecond
	MaxTimeout = 5 * time.Minute
)

// Config holds the configuration of a serial Link.
type Config struct {
	portName string
	baudRate int

	// readBufferSize is the size of a single read from the port.
	readBufferSize int

	// sendQueueSize bounds the number of pending Send calls.
	sendQueueSize int

	sendTimeout  time.Duration
	closeTimeout time.Duration

	// statsInterval enables periodic metrics logging when > 0.
	statsInterval time.Duration

	linkOpts []link.Option

	logger logger.Logger
}

// NewConfig creates a Link configuration for the serial port portName.
//
// portName may be empty when the Link is created over an existing stream
// with NewLink.
func NewConfig(portName string, opts ...Option) (*Config, error) {
	cfg := &Config{
		portName:       portName,
		baudRate:       DefaultBaudRate,
		readBufferSize: DefaultReadBufferSize,
		sendQueueSize:  DefaultSendQueueSize,
		sendTimeout:    DefaultSendTimeout,
		closeTimeout:   DefaultCloseTimeout,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	// fail fast on bad session options
	if _, err := cfg.sessionConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// sessionConfig builds the link.Config of the session, sharing the logger.
func (cfg *Config) sessionConfig() (*link.Config, error) {
	opts := make([]link.Option, 0, len(cfg.linkOpts)+1)
	opts = append(opts, link.WithLogger(cfg.logger))
	opts = append(opts, cfg.linkOpts...)

	return link.NewConfig(opts...)
}

// --- Getters ---

// PortName returns the serial port name.
func (cfg *Config) PortName() string { return cfg.portName }

// BaudRate returns the serial baud rate.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// ReadBufferSize returns the size of a single port read.
func (cfg *Config) ReadBufferSize() int { return cfg.readBufferSize }

// SendQueueSize returns the capacity of the send queue.
func (cfg *Config) SendQueueSize() int { return cfg.sendQueueSize }

// SendTimeout returns how long Send waits for its frame to go out.
func (cfg *Config) SendTimeout() time.Duration { return cfg.sendTimeout }

// CloseTimeout returns how long Close waits for the runtime to stop.
func (cfg *Config) CloseTimeout() time.Duration { return cfg.closeTimeout }

// StatsInterval returns the metrics logging interval, zero when disabled.
func (cfg *Config) StatsInterval() time.Duration { return cfg.statsInterval }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the serial baud rate.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud < MinBaudRate || baud > MaxBaudRate {
			return fmt.Errorf("uart: baud rate %d out of range [%d, %d]", baud, MinBaudRate, MaxBaudRate)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithReadBufferSize sets the size of a single read from the port.
func WithReadBufferSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinReadBufferSize || n > MaxReadBufferSize {
			return fmt.Errorf("uart: read buffer size %d out of range [%d, %d]", n, MinReadBufferSize, MaxReadBufferSize)
		}
		cfg.readBufferSize = n

		return nil
	})
}

// WithSendQueueSize sets how many Send calls may be pending at once.
func WithSendQueueSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxSendQueueSize {
			return fmt.Errorf("uart: send queue size %d out of range [1, %d]", n, MaxSendQueueSize)
		}
		cfg.sendQueueSize = n

		return nil
	})
}

// WithSendTimeout sets how long Send waits for a free window slot.
func WithSendTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("uart: send timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.sendTimeout = d

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the runtime to stop.
func WithCloseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("uart: close timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithStatsInterval logs the link metrics at Info level every d.
// Zero disables it.
func WithStatsInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return fmt.Errorf("uart: negative stats interval %v", d)
		}
		cfg.statsInterval = d

		return nil
	})
}

// WithLinkOptions passes options to the underlying link session.
func WithLinkOptions(opts ...link.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.linkOpts = append(cfg.linkOpts, opts...)

		return nil
	})
}

// WithLogger sets the logger of the runtime and its session.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("uart: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
