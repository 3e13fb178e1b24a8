package stripedmap

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultInitialCapacity, cfg.InitialCapacity)
	require.Equal(t, DefaultLoadFactor, cfg.LoadFactor)
	require.Equal(t, time.Second, cfg.LockTimeout)
	require.Equal(t, 10*time.Millisecond, cfg.ProbeTimeout)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"capacity", func(c *Config) { c.InitialCapacity = 0 }},
		{"load factor low", func(c *Config) { c.LoadFactor = 0.05 }},
		{"load factor high", func(c *Config) { c.LoadFactor = 1.01 }},
		{"lock timeout", func(c *Config) { c.LockTimeout = -time.Second }},
		{"probe timeout", func(c *Config) { c.ProbeTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestNewFromTOMLConfig(t *testing.T) {
	const doc = `
name = "sessions"
initial-capacity = 16
load-factor = 0.5
lock-timeout = "250ms"
probe-timeout = "2ms"
`
	cfg := DefaultConfig()
	_, err := toml.Decode(doc, &cfg)
	require.NoError(t, err)
	require.Equal(t, "sessions", cfg.Name)
	require.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	require.Equal(t, 2*time.Millisecond, cfg.ProbeTimeout)

	tbl, err := NewFromConfig[string, string](cfg, WithProbeTimeout(5*time.Millisecond))
	require.NoError(t, err)
	defer tbl.Close()
	require.Equal(t, 16, tbl.Capacity())
	require.Equal(t, 0.5, tbl.LoadFactor())
	require.Equal(t, 5*time.Millisecond, tbl.cfg.ProbeTimeout)
}
