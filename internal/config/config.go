package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DeviceNamePrefix   string                  `yaml:"device_name_prefix"`
	ServiceUUID        string                  `yaml:"service_uuid"`
	CharacteristicUUID string                  `yaml:"characteristic_uuid"`
	ScanTimeoutS       float64                 `yaml:"scan_timeout_s"`
	ReconnectDelayS    float64                 `yaml:"reconnect_delay_s"`
	DefaultRepeatHz    float64                 `yaml:"default_repeat_hz"`
	Hotkey             []string                `yaml:"hotkey"`
	LogLevel           string                  `yaml:"log_level"`
	Buttons            map[string]ButtonConfig `yaml:"buttons"` // keyed by 4-hex-digit frame prefix
}

// ButtonConfig describes one logical button: its name, the host key it
// drives, and how the key is actuated.
type ButtonConfig struct {
	Name     string   `yaml:"name"`
	Key      string   `yaml:"key"`       // logical key name; empty = track state but inject nothing
	Behavior string   `yaml:"behavior"`  // "tap" or "hold"; empty = "tap"
	RepeatHz *float64 `yaml:"repeat_hz"` // hold only; nil = default_repeat_hz, 0 = no repeat
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "shiftkey")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the KICKR BIKE SHIFT button layout and the
// Wahoo service/characteristic UUIDs. Both steer buttons default to hold;
// everything else taps on press.
func Default() *Config {
	return &Config{
		DeviceNamePrefix:   "KICKR BIKE SHIFT",
		ServiceUUID:        "a026ee0d-0a7d-4ab3-97fa-f1500f9feb8b",
		CharacteristicUUID: "a026e03c-0a7d-4ab3-97fa-f1500f9feb8b",
		ScanTimeoutS:       12.0,
		ReconnectDelayS:    1.5,
		DefaultRepeatHz:    0,
		Hotkey:             []string{"ctrl", "shift", "b"},
		LogLevel:           "info",
		Buttons: map[string]ButtonConfig{
			// Right cluster
			"0001": {Name: "Right Up", Key: "7"},
			"8000": {Name: "Right Down", Key: "3"},
			"0008": {Name: "Right Steer", Key: "ArrowRight", Behavior: "hold"},
			"0004": {Name: "Right Shift Up", Key: "i"},
			"0002": {Name: "Right Shift Down", Key: "k"},
			"4000": {Name: "Right Brake", Key: "Space"},
			// Left cluster
			"0200": {Name: "Left Up", Key: "3"},
			"0400": {Name: "Left Down", Key: "4"},
			"2000": {Name: "Left Steer", Key: "ArrowLeft", Behavior: "hold"},
			"1000": {Name: "Left Shift Up", Key: "i"},
			"0800": {Name: "Left Shift Down", Key: "k"},
			"0100": {Name: "Left Brake", Key: "Space"},
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults; a "buttons" section in the file replaces the default
// button table entirely.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Unmarshal into a nil map so a buttons section in the file replaces
	// the default table instead of merging into it.
	cfg := Default()
	defaults := cfg.Buttons
	cfg.Buttons = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Buttons == nil {
		cfg.Buttons = defaults
	}

	return cfg, nil
}

// ScanTimeout returns the scan timeout as a duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutS * float64(time.Second))
}

// ReconnectDelay returns the delay between reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayS * float64(time.Second))
}

// EffectiveRepeatHz resolves a button's repeat rate, falling back to the
// global default. Only meaningful for hold-behavior buttons.
func (c *Config) EffectiveRepeatHz(b ButtonConfig) float64 {
	if b.RepeatHz != nil {
		return *b.RepeatHz
	}
	return c.DefaultRepeatHz
}

// ParsePrefix converts a 4-hex-digit frame prefix (e.g. "0008") to its
// 16-bit big-endian value as carried in frame bytes 0-1.
func ParsePrefix(s string) (uint16, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("prefix %q must be 4 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("prefix %q is not hex: %w", s, err)
	}
	return uint16(v), nil
}

// PrefixMap returns the frame-prefix to button-name lookup used by the
// frame decoder.
func (c *Config) PrefixMap() (map[uint16]string, error) {
	m := make(map[uint16]string, len(c.Buttons))
	for prefix, b := range c.Buttons {
		v, err := ParsePrefix(prefix)
		if err != nil {
			return nil, err
		}
		m[v] = b.Name
	}
	return m, nil
}

// ButtonsByName returns button configs keyed by logical button name, with
// behavior defaulted to tap and repeat rates resolved against the global
// default.
func (c *Config) ButtonsByName() map[string]ButtonConfig {
	m := make(map[string]ButtonConfig, len(c.Buttons))
	for _, b := range c.Buttons {
		if b.Behavior == "" {
			b.Behavior = "tap"
		}
		hz := c.EffectiveRepeatHz(b)
		b.RepeatHz = &hz
		m[b.Name] = b
	}
	return m
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DeviceNamePrefix == "" {
		return fmt.Errorf("device_name_prefix must not be empty")
	}
	if c.ServiceUUID == "" {
		return fmt.Errorf("service_uuid must not be empty")
	}
	if c.CharacteristicUUID == "" {
		return fmt.Errorf("characteristic_uuid must not be empty")
	}
	if c.ScanTimeoutS <= 0 {
		return fmt.Errorf("scan_timeout_s must be > 0")
	}
	if c.ReconnectDelayS <= 0 {
		return fmt.Errorf("reconnect_delay_s must be > 0")
	}
	if c.DefaultRepeatHz < 0 {
		return fmt.Errorf("default_repeat_hz must be >= 0")
	}
	if len(c.Buttons) == 0 {
		return fmt.Errorf("buttons must not be empty")
	}

	names := make(map[string]string, len(c.Buttons))
	for prefix, b := range c.Buttons {
		if _, err := ParsePrefix(prefix); err != nil {
			return fmt.Errorf("buttons: %w", err)
		}
		if b.Name == "" {
			return fmt.Errorf("buttons[%s]: name must not be empty", prefix)
		}
		if prev, dup := names[b.Name]; dup {
			return fmt.Errorf("buttons: name %q used by both %s and %s", b.Name, prev, prefix)
		}
		names[b.Name] = prefix
		switch b.Behavior {
		case "", "tap", "hold":
		default:
			return fmt.Errorf("buttons[%s]: behavior must be \"tap\" or \"hold\", got %q", prefix, b.Behavior)
		}
		if b.RepeatHz != nil && *b.RepeatHz < 0 {
			return fmt.Errorf("buttons[%s]: repeat_hz must be >= 0", prefix)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
