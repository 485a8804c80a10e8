package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	Typing    TypingConfig    `yaml:"typing"`
	Hotkey    HotkeyConfig    `yaml:"hotkey"`
	LogLevel  string          `yaml:"log_level"`
}

// BluetoothConfig selects the platform stack and its timeouts.
type BluetoothConfig struct {
	Backend        string        `yaml:"backend"` // "tinygo" or "bluez"
	Adapter        string        `yaml:"adapter"` // controller name for bluez, e.g. "hci0"
	ScanTimeout    time.Duration `yaml:"scan_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ServiceFilter limits discovery to devices advertising this service
	// UUID. Empty lists every device.
	ServiceFilter string `yaml:"service_filter"`
}

// TypingConfig holds keystroke pacing.
type TypingConfig struct {
	KeyDelay  time.Duration `yaml:"key_delay"`
	CharDelay time.Duration `yaml:"char_delay"`
}

// HotkeyConfig holds the global clipboard-typing hotkey.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "btkbd")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bluetooth: BluetoothConfig{
			Backend:        "tinygo",
			Adapter:        "hci0",
			ScanTimeout:    10 * time.Second,
			ConnectTimeout: 15 * time.Second,
		},
		Typing: TypingConfig{
			KeyDelay:  10 * time.Millisecond,
			CharDelay: 50 * time.Millisecond,
		},
		Hotkey: HotkeyConfig{
			Enabled: true,
			Keys:    []string{"ctrl", "shift", "v"},
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Bluetooth.Backend {
	case "tinygo", "bluez":
	default:
		return fmt.Errorf("bluetooth.backend must be \"tinygo\" or \"bluez\", got %q", c.Bluetooth.Backend)
	}

	if c.Bluetooth.Backend == "bluez" && c.Bluetooth.Adapter == "" {
		return errors.New("bluetooth.adapter must not be empty for the bluez backend")
	}

	if c.Bluetooth.ScanTimeout <= 0 {
		return fmt.Errorf("bluetooth.scan_timeout must be > 0")
	}

	if c.Bluetooth.ConnectTimeout <= 0 {
		return fmt.Errorf("bluetooth.connect_timeout must be > 0")
	}

	if c.Typing.KeyDelay < 0 || c.Typing.CharDelay < 0 {
		return fmt.Errorf("typing delays must not be negative")
	}

	if c.Hotkey.Enabled && len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty when the hotkey is enabled")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level string to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# btkbd configuration
# bluetooth.backend: "tinygo" (all platforms) or "bluez" (Linux, talks to bluetoothd over D-Bus)
# durations use Go syntax, e.g. 10s, 50ms
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there. It returns the written path, or "" when a file was already
// present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
