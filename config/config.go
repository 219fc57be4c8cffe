// Package config loads lookout.toml from the XDG config directory.
//
// The file is optional; every field has a default. Unknown top-level
// sections are kept around and can be decoded on demand with
// UnmarshalExtension, so other tools can piggyback their settings on the
// same file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"

	"github.com/grovetools/lookout/errors"
	"github.com/grovetools/lookout/pkg/paths"
)

const (
	// DefaultAlertTimeoutSeconds is how long a pending tool use may sit
	// before the one-shot alert fires.
	DefaultAlertTimeoutSeconds = 5

	// DefaultRefreshIntervalSeconds is the daemon's periodic rescan cadence.
	DefaultRefreshIntervalSeconds = 5
)

// Config is the parsed lookout.toml.
type Config struct {
	// DataRoot is the monitored agent's data directory (default ~/.claude,
	// overridable with LOOKOUT_DATA_ROOT).
	DataRoot string `toml:"data_root"`

	// AlertTimeoutSeconds is the pending-approval alert threshold.
	AlertTimeoutSeconds int `toml:"alert_timeout_seconds"`

	// RefreshIntervalSeconds is the daemon's periodic refresh interval.
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`

	// Socket overrides the daemon's unix socket path.
	Socket string `toml:"socket"`

	// raw holds the full decoded file for extension sections.
	raw map[string]interface{}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(paths.ConfigDir(), "lookout.toml")
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}
	if err := toml.Unmarshal(data, &cfg.raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadDefault loads the standard config file, falling back to pure
// defaults when it does not exist. A missing file is not an error.
func LoadDefault() (*Config, error) {
	cfg, err := Load(DefaultPath())
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			cfg = &Config{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataRoot == "" {
		c.DataRoot = paths.AgentDataRoot()
	}
	if root := os.Getenv("LOOKOUT_DATA_ROOT"); root != "" {
		c.DataRoot = root
	}
	if c.AlertTimeoutSeconds <= 0 {
		c.AlertTimeoutSeconds = DefaultAlertTimeoutSeconds
	}
	if c.RefreshIntervalSeconds <= 0 {
		c.RefreshIntervalSeconds = DefaultRefreshIntervalSeconds
	}
	if c.Socket == "" {
		c.Socket = paths.SocketPath()
	}
}

// AlertTimeout returns the alert threshold as a duration.
func (c *Config) AlertTimeout() time.Duration {
	return time.Duration(c.AlertTimeoutSeconds) * time.Second
}

// RefreshInterval returns the daemon refresh cadence as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// UnmarshalExtension decodes a named top-level section of the config file
// into out. Returns nil without touching out when the section is absent.
func (c *Config) UnmarshalExtension(name string, out interface{}) error {
	if c.raw == nil {
		return nil
	}
	section, ok := c.raw[name]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "toml",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create extension decoder")
	}
	if err := decoder.Decode(section); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode config section").
			WithDetail("section", name)
	}
	return nil
}
