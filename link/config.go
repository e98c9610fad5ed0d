package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-arqlink/logger"
)

// Default configuration values.
const (
	DefaultWindowSize     = 4
	DefaultAckDelay       = 100 * time.Millisecond
	DefaultMaxPayloadSize = 256
)

// Configuration range limits.
const (
	// MaxWindowSize is the largest window that keeps wrapped sequence numbers
	// unambiguous in the 3-bit space.
	MaxWindowSize = SeqModulus / 2

	MinAckDelay = time.Millisecond
	MaxAckDelay = time.Minute

	MaxMaxPayloadSize = 1024
)

// UnframedPolicy selects what the receiver does with a byte that arrives
// while it is not inside any frame.
type UnframedPolicy int

const (
	// UnframedResync discards bytes until the next frame delimiter.
	UnframedResync UnframedPolicy = iota
	// UnframedFatal faults the session; every later FeedByte fails.
	UnframedFatal
)

// String implements fmt.Stringer.
func (p UnframedPolicy) String() string {
	switch p {
	case UnframedResync:
		return "resync"
	case UnframedFatal:
		return "fatal"
	default:
		return fmt.Sprintf("UnframedPolicy(%d)", int(p))
	}
}

// Config holds the parameters of a link session.
type Config struct {
	// windowSize is the number of slots in the TX arena; a power of two.
	windowSize int

	// ackDelay is the fixed retransmission interval.
	ackDelay time.Duration

	// maxPayloadSize bounds the payload of a single data frame.
	maxPayloadSize int

	// reorderBuffer enables caching of out-of-order data frames.
	reorderBuffer bool

	unframedPolicy UnframedPolicy

	logger logger.Logger
}

// NewConfig creates a session configuration.
//
// opts are functional options applied in order; see With* functions.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		windowSize:     DefaultWindowSize,
		ackDelay:       DefaultAckDelay,
		maxPayloadSize: DefaultMaxPayloadSize,
		unframedPolicy: UnframedResync,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// WindowSize returns the number of packets that may be outstanding at once.
func (cfg *Config) WindowSize() int { return cfg.windowSize }

// AckDelay returns the retransmission interval.
func (cfg *Config) AckDelay() time.Duration { return cfg.ackDelay }

// MaxPayloadSize returns the maximum payload size of a data frame.
func (cfg *Config) MaxPayloadSize() int { return cfg.maxPayloadSize }

// ReorderBuffer returns whether out-of-order data frames are cached.
func (cfg *Config) ReorderBuffer() bool { return cfg.reorderBuffer }

// UnframedPolicy returns the policy for bytes received outside of a frame.
func (cfg *Config) UnframedPolicy() UnframedPolicy { return cfg.unframedPolicy }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithWindowSize sets the send window. Must be 1, 2 or 4.
func WithWindowSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxWindowSize || n&(n-1) != 0 {
			return fmt.Errorf("link: window size %d must be a power of two in [1, %d]", n, MaxWindowSize)
		}
		cfg.windowSize = n

		return nil
	})
}

// WithAckDelay sets how long an unacknowledged packet waits before it is
// retransmitted.
func WithAckDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinAckDelay || d > MaxAckDelay {
			return fmt.Errorf("link: ack delay %v out of range [%v, %v]", d, MinAckDelay, MaxAckDelay)
		}
		cfg.ackDelay = d

		return nil
	})
}

// WithMaxPayloadSize sets the maximum payload size of a data frame.
func WithMaxPayloadSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxMaxPayloadSize {
			return fmt.Errorf("link: max payload size %d out of range [1, %d]", n, MaxMaxPayloadSize)
		}
		cfg.maxPayloadSize = n

		return nil
	})
}

// WithReorderBuffer enables or disables the out-of-order reassembly cache.
// Disabled by default: out-of-order frames are dropped and the peer resends
// them after its ack delay.
func WithReorderBuffer(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.reorderBuffer = enabled

		return nil
	})
}

// WithUnframedPolicy sets the policy for bytes received outside of a frame.
func WithUnframedPolicy(p UnframedPolicy) Option {
	return optFunc(func(cfg *Config) error {
		if p != UnframedResync && p != UnframedFatal {
			return fmt.Errorf("link: unknown unframed policy %d", int(p))
		}
		cfg.unframedPolicy = p

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
