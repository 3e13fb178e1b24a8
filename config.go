package stripedmap

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultInitialCapacity is the bucket count used by DefaultConfig.
	DefaultInitialCapacity = 32
	// DefaultLoadFactor is the resize threshold used by DefaultConfig.
	DefaultLoadFactor = 0.75
	// DefaultLockTimeout bounds every bucket lock acquisition.
	DefaultLockTimeout = time.Second
	// DefaultProbeTimeout bounds each bucket probe of PopItem.
	DefaultProbeTimeout = 10 * time.Millisecond

	minLoadFactor = 0.1
	maxLoadFactor = 1.0
	// growthFactor is the capacity multiplier applied by every resize.
	growthFactor = 2
)

// Config defines configurable Table options.
type Config struct {
	// Name identifies the table in logs and metric labels.
	Name string `toml:"name"`
	// InitialCapacity is the number of buckets allocated at construction.
	InitialCapacity int `toml:"initial-capacity"`
	// LoadFactor is the size/capacity ratio that triggers a resize.
	// It must lie in (0.1, 1.0].
	LoadFactor float64 `toml:"load-factor"`
	// LockTimeout bounds the wait for any single bucket lock.
	LockTimeout time.Duration `toml:"lock-timeout"`
	// ProbeTimeout bounds the wait for each bucket probed by PopItem.
	ProbeTimeout time.Duration `toml:"probe-timeout"`

	// Logger receives resize and timeout events. nil means no logging.
	Logger *zap.Logger `toml:"-"`
	// Registerer, if set, receives the table's metrics. They are
	// unregistered again by Close.
	Registerer prometheus.Registerer `toml:"-"`
}

// Option adjusts a Config.
type Option func(*Config)

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		InitialCapacity: DefaultInitialCapacity,
		LoadFactor:      DefaultLoadFactor,
		LockTimeout:     DefaultLockTimeout,
		ProbeTimeout:    DefaultProbeTimeout,
	}
}

// Validate checks the constructor parameters.
func (c *Config) Validate() error {
	if c.InitialCapacity < 1 {
		return errors.Wrapf(ErrInvalidArgument, "capacity %d must be at least 1", c.InitialCapacity)
	}
	if !(c.LoadFactor > minLoadFactor && c.LoadFactor <= maxLoadFactor) {
		return errors.Wrapf(ErrInvalidArgument, "load factor %v outside (%v, %v]",
			c.LoadFactor, minLoadFactor, maxLoadFactor)
	}
	if c.LockTimeout <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "lock timeout %v must be positive", c.LockTimeout)
	}
	if c.ProbeTimeout <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "probe timeout %v must be positive", c.ProbeTimeout)
	}
	return nil
}

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithLockTimeout bounds the wait for any single bucket lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.LockTimeout = timeout
	}
}

// WithProbeTimeout bounds the wait for each bucket probed by PopItem.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ProbeTimeout = timeout
	}
}

// WithLogger routes table events to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRegisterer registers the table's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registerer = reg
	}
}
