// Package config loads and validates the mixd daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mixctl/mixctl/internal/frame"
	"github.com/mixctl/mixctl/internal/protocol"
)

// Duration is a time.Duration that unmarshals from human-readable strings
// like "5s" or "1m30s", or from integer milliseconds for compatibility
// with the wire protocol's millisecond fields.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m30s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the mixd configuration, loaded from
// ~/.config/mixctl/mixd.toml.
type Config struct {
	Daemon    DaemonConfig    `toml:"daemon"`
	Transport TransportConfig `toml:"transport"`
	Dispatch  DispatchConfig  `toml:"dispatch"`
	Registry  RegistryConfig  `toml:"registry"`
	Mixer     MixerConfig     `toml:"mixer"`
}

// DaemonConfig contains process-level settings.
type DaemonConfig struct {
	SocketPath    string `toml:"socket_path"`    // Unix socket for local clients ("" disables)
	MetricsListen string `toml:"metrics_listen"` // Prometheus scrape address ("" disables)
}

// TransportConfig contains framing settings.
type TransportConfig struct {
	MaxFrameSize int `toml:"max_frame_size"` // bytes, bounds per-frame memory
}

// DispatchConfig contains request dispatch settings.
type DispatchConfig struct {
	DefaultTimeout Duration `toml:"default_timeout"` // per-request default, overridable on the wire
}

// RegistryConfig contains source liveness settings.
type RegistryConfig struct {
	SweepInterval Duration `toml:"sweep_interval"` // how often the liveness sweep runs
	MaxSourceAge  Duration `toml:"max_source_age"` // sources unseen this long are swept
}

// MixerConfig contains volume coordination settings.
type MixerConfig struct {
	InitialMode string `toml:"initial_mode"` // independent, linked, or inverse
}

// Default creates a Config with default values.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			SocketPath:    "",
			MetricsListen: "",
		},
		Transport: TransportConfig{
			MaxFrameSize: frame.DefaultMaxFrameSize,
		},
		Dispatch: DispatchConfig{
			DefaultTimeout: Duration(5 * time.Second),
		},
		Registry: RegistryConfig{
			SweepInterval: Duration(30 * time.Second),
			MaxSourceAge:  Duration(2 * time.Minute),
		},
		Mixer: MixerConfig{
			InitialMode: string(protocol.ModeIndependent),
		},
	}
}

// Path returns the default config file path.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "mixctl", "mixd.toml"), nil
}

// DefaultSocketPath returns the socket path used when the config leaves
// it empty and a socket is requested.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "mixd.sock")
	}
	return filepath.Join(os.TempDir(), "mixd.sock")
}

// Load reads the configuration from path, or the default path when empty.
// A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents.
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Transport.MaxFrameSize <= 0 || c.Transport.MaxFrameSize > 16*frame.DefaultMaxFrameSize {
		return fmt.Errorf("max_frame_size must be between 1 and %d bytes, got %d",
			16*frame.DefaultMaxFrameSize, c.Transport.MaxFrameSize)
	}
	if c.Dispatch.DefaultTimeout.Duration() <= 0 {
		return fmt.Errorf("default_timeout must be positive, got %s", c.Dispatch.DefaultTimeout.Duration())
	}
	if c.Registry.SweepInterval.Duration() <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.Registry.SweepInterval.Duration())
	}
	if c.Registry.MaxSourceAge.Duration() <= 0 {
		return fmt.Errorf("max_source_age must be positive, got %s", c.Registry.MaxSourceAge.Duration())
	}
	if _, err := protocol.ParseMode(c.Mixer.InitialMode); err != nil {
		return fmt.Errorf("initial_mode: %w", err)
	}
	return nil
}
