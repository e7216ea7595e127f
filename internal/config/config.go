// Package config loads the deckhand layout from a YAML file plus
// environment variables. Environment variables take precedence for dev
// flexibility.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use "500ms" style strings.
type Duration time.Duration

// UnmarshalYAML parses durations from strings ("2s") or bare integers
// (milliseconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if ms, err := strconv.Atoi(value.Value); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders durations in time.Duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the full layout: device settings plus the page and key tree
// applied to the deck at startup.
type Config struct {
	Serial     string    `yaml:"serial,omitempty"`
	Brightness *int      `yaml:"brightness,omitempty"`
	Hold       *Duration `yaml:"hold,omitempty"`
	Press      *Duration `yaml:"press,omitempty"`
	Idle       *Duration `yaml:"idle,omitempty"`

	Emulator EmulatorConfig `yaml:"emulator,omitempty"`

	Pages []PageConfig `yaml:"pages"`
}

// EmulatorConfig sets the geometry the emulator window presents.
type EmulatorConfig struct {
	Rows    int `yaml:"rows,omitempty"`
	Columns int `yaml:"columns,omitempty"`
	KeyW    int `yaml:"key_width,omitempty"`
	KeyH    int `yaml:"key_height,omitempty"`
}

// PageConfig describes one virtual screen.
type PageConfig struct {
	Name       string      `yaml:"name"`
	Background string      `yaml:"background,omitempty"`
	Hold       *Duration   `yaml:"hold,omitempty"`
	Press      *Duration   `yaml:"press,omitempty"`
	Keys       []KeyConfig `yaml:"keys"`
}

// KeyConfig describes one key placement. Row and column are 1-based; when
// both are zero the key takes the lowest free slot.
type KeyConfig struct {
	Row        int       `yaml:"row,omitempty"`
	Col        int       `yaml:"col,omitempty"`
	Image      string    `yaml:"image,omitempty"`
	Background string    `yaml:"background,omitempty"`
	PressScale float64   `yaml:"press_scale,omitempty"`
	Hold       *Duration `yaml:"hold,omitempty"`
	Press      *Duration `yaml:"press,omitempty"`
	Action     string    `yaml:"action,omitempty"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "deckhand")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// Allow override via environment variable (used by nix-generated config)
	if p := os.Getenv("DECKHAND_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load assembles configuration from the YAML file plus environment
// variables. Environment variables always take precedence. Returns a usable
// Config even when the file is missing.
func Load() (*Config, error) {
	return LoadPath(DefaultConfigPath())
}

// LoadPath loads configuration from a specific file path.
func LoadPath(path string) (*Config, error) {
	cfg := &Config{}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if v := os.Getenv("DECKHAND_SERIAL"); v != "" {
		cfg.Serial = v
	}
	if v := os.Getenv("DECKHAND_BRIGHTNESS"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing DECKHAND_BRIGHTNESS: %w", err)
		}
		cfg.Brightness = &b
	}

	// Relative image paths resolve against the config file's directory.
	base := filepath.Dir(path)
	for pi := range cfg.Pages {
		p := &cfg.Pages[pi]
		p.Background = resolvePath(base, p.Background)
		for ki := range p.Keys {
			k := &p.Keys[ki]
			k.Image = resolvePath(base, k.Image)
			k.Background = resolvePath(base, k.Background)
		}
	}

	return cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// WriteConfigFile writes the config to the default YAML file.
func WriteConfigFile(cfg *Config) error {
	dir := filepath.Dir(DefaultConfigPath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(DefaultConfigPath(), data, 0o644)
}
