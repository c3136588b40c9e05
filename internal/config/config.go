package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/vjranagit/leveltracker/pkg/storage"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Display DisplayConfig `toml:"display"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr      string   `toml:"listen_addr"`
	Timeout         Duration `toml:"timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Backend          string   `toml:"backend"`
	Path             string   `toml:"path"`
	Key              string   `toml:"key"`
	CompressionLevel int      `toml:"compression_level"`
	PersistDebounce  Duration `toml:"persist_debounce"`
}

// Duration is a time.Duration written as "1.5s" in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return goerr.Wrap(err, "invalid duration", goerr.V("value", string(text)))
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DisplayConfig holds presentation settings
type DisplayConfig struct {
	Timezone    string `toml:"timezone"`
	ChartWidth  int    `toml:"chart_width"`
	ChartHeight int    `toml:"chart_height"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8080",
			Timeout:         Duration{30 * time.Second},
			ShutdownTimeout: Duration{20 * time.Second},
		},
		Storage: StorageConfig{
			Backend:          storage.BackendBadger,
			Path:             "./data",
			Key:              storage.DefaultKey,
			CompressionLevel: 0,
		},
		Display: DisplayConfig{
			Timezone:    "Local",
			ChartWidth:  1024,
			ChartHeight: 400,
		},
	}
}

// LoadFile reads a TOML file on top of the defaults. Keys missing from the file keep their
// default values.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	// #nosec G304 - path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V("path", path))
	}

	return cfg, nil
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Backend:          c.Storage.Backend,
		Path:             c.Storage.Path,
		Key:              c.Storage.Key,
		CompressionLevel: c.Storage.CompressionLevel,
		PersistDebounce:  c.Storage.PersistDebounce.Duration,
	}
}

// Location resolves the display time zone
func (c *Config) Location() (*time.Location, error) {
	if c.Display.Timezone == "" || c.Display.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return nil, goerr.Wrap(err, "unknown timezone", goerr.V("timezone", c.Display.Timezone))
	}
	return loc, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return goerr.New("server listen address is required")
	}

	switch c.Storage.Backend {
	case storage.BackendBadger, storage.BackendSQLite, storage.BackendFile:
		if c.Storage.Path == "" {
			return goerr.New("storage path is required", goerr.V("backend", c.Storage.Backend))
		}
	case storage.BackendMemory:
	default:
		return goerr.New("unknown storage backend", goerr.V("backend", c.Storage.Backend))
	}

	if c.Storage.Key == "" {
		return goerr.New("storage key is required")
	}

	if c.Storage.CompressionLevel < 0 || c.Storage.CompressionLevel > 4 {
		return goerr.New("compression level must be between 0 and 4",
			goerr.V("compression_level", c.Storage.CompressionLevel))
	}

	if c.Storage.PersistDebounce.Duration < 0 {
		return goerr.New("persist debounce must not be negative")
	}

	if c.Display.ChartWidth < 1 || c.Display.ChartHeight < 1 {
		return goerr.New("chart dimensions must be positive",
			goerr.V("width", c.Display.ChartWidth), goerr.V("height", c.Display.ChartHeight))
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}
