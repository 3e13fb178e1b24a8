package main

import (
	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/llxisdsh/stripedmap"
)

// loadConfig starts from the defaults, applies the TOML file if one is
// given, then any flag the user set explicitly.
func loadConfig(path string, flags *pflag.FlagSet) (stripedmap.Config, error) {
	cfg := stripedmap.DefaultConfig()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, errors.Wrapf(err, "load config %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, errors.Newf("unknown config keys in %s: %v", path, undecoded)
		}
	}

	var err error
	if flags.Changed("name") {
		cfg.Name, err = flags.GetString("name")
	}
	if err == nil && flags.Changed("capacity") {
		cfg.InitialCapacity, err = flags.GetInt("capacity")
	}
	if err == nil && flags.Changed("load-factor") {
		cfg.LoadFactor, err = flags.GetFloat64("load-factor")
	}
	if err == nil && flags.Changed("lock-timeout") {
		cfg.LockTimeout, err = flags.GetDuration("lock-timeout")
	}
	if err == nil && flags.Changed("probe-timeout") {
		cfg.ProbeTimeout, err = flags.GetDuration("probe-timeout")
	}
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// addTableFlags registers the flags understood by loadConfig.
func addTableFlags(flags *pflag.FlagSet) {
	def := stripedmap.DefaultConfig()
	flags.String("name", def.Name, "table name used in logs and metrics")
	flags.Int("capacity", def.InitialCapacity, "initial number of buckets")
	flags.Float64("load-factor", def.LoadFactor, "resize threshold in (0.1, 1.0]")
	flags.Duration("lock-timeout", def.LockTimeout, "bound on every bucket lock wait")
	flags.Duration("probe-timeout", def.ProbeTimeout, "bound on each bucket probe when popping an arbitrary entry")
}
