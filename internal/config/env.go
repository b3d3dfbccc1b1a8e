package config

import (
	"strconv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCVIEW_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envSetter func(c *Config, value string) error

// envMapping maps environment variables to config fields.
var envMapping = map[string]struct {
	path string
	set  envSetter
}{
	EnvPrefix + "LOG_LEVEL": {"log.level", func(c *Config, v string) error {
		c.Log.Level = v
		return nil
	}},
	EnvPrefix + "LOG_FILE": {"log.file", func(c *Config, v string) error {
		c.Log.File = v
		return nil
	}},
	EnvPrefix + "CACHE_MAX_ENTRIES": {"cache.max_entries", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Cache.MaxEntries = n
		return err
	}},
	EnvPrefix + "CACHE_MAX_BYTES": {"cache.max_bytes", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.Cache.MaxBytes = n
		return err
	}},
	EnvPrefix + "RENDER_WORKERS": {"render.workers", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Render.Workers = n
		return err
	}},
	EnvPrefix + "RELOAD_QUIET": {"reload.quiet_period", func(c *Config, v string) error {
		return c.Reload.QuietPeriod.UnmarshalText([]byte(v))
	}},
	EnvPrefix + "GRAPHICS": {"graphics.protocol", func(c *Config, v string) error {
		c.Graphics.Protocol = v
		return nil
	}},
}

// EnvVars returns the supported environment variable names.
func EnvVars() []string {
	names := make([]string, 0, len(envMapping))
	for name := range envMapping {
		names = append(names, name)
	}
	return names
}

// ApplyEnv overlays cfg with environment overrides found by lookup.
// Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for name, m := range envMapping {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		if err := m.set(cfg, v); err != nil {
			return &ValidationError{Path: m.path, Message: name + ": " + err.Error(), Value: v, Code: ErrCodeTypeMismatch}
		}
	}
	return nil
}
