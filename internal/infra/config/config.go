// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Control  ControlConfig  `yaml:"control"`
	Playback PlaybackConfig `yaml:"playback"`
	Device   DeviceConfig   `yaml:"device"`
	Settings SettingsConfig `yaml:"settings"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents control-plane authentication.
// An empty token disables the check.
type ControlConfig struct {
	Token string `yaml:"token"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	AssetDir       string `yaml:"asset_dir" default:"assets/audio"`
	FadeDurationMs int    `yaml:"fade_duration_ms" default:"1000" validate:"gte=1,lte=60000"`
	FadeSteps      int    `yaml:"fade_steps" default:"10" validate:"gte=10,lte=1000"`
}

// DeviceConfig selects the playback device implementation.
type DeviceConfig struct {
	Type     string         `yaml:"type" default:"headless" validate:"oneof=headless oto"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SettingsConfig selects where user preferences are persisted.
type SettingsConfig struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=memory file sqlite"`
	Path    string `yaml:"path" validate:"required_unless=Backend memory"`
	Key     string `yaml:"key" default:"audio_settings" validate:"required"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("BGMBOX_CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
	if v := os.Getenv("BGMBOX_SETTINGS_PATH"); v != "" {
		c.Settings.Path = v
	}
	if v := os.Getenv("BGMBOX_ASSET_DIR"); v != "" {
		c.Playback.AssetDir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateFadeResolution(); err != nil {
		return err
	}

	return nil
}

// validateFadeResolution rejects fades whose step interval rounds to zero.
func (c *Config) validateFadeResolution() error {
	if c.Playback.FadeDurationMs < 2*c.Playback.FadeSteps {
		return errors.Newf("fade_duration_ms (%d) is too short for fade_steps (%d): each step needs at least 1ms",
			c.Playback.FadeDurationMs, c.Playback.FadeSteps)
	}
	return nil
}

// FadeDuration returns the default crossfade duration.
func (c *Config) FadeDuration() time.Duration {
	return time.Duration(c.Playback.FadeDurationMs) * time.Millisecond
}

// IsControlProtected reports whether mutating procedures require a token.
func (c *Config) IsControlProtected() bool {
	return c.Control.Token != ""
}
