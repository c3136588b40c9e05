package config

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	appconfig "github.com/vjranagit/leveltracker/internal/config"
	"github.com/vjranagit/leveltracker/pkg/storage"
	"github.com/vjranagit/leveltracker/pkg/store"
	"github.com/vjranagit/leveltracker/pkg/utils/logging"
)

// App holds CLI flags shared by every command that opens the measurement store.
// Flags that were set (on the command line or via env) override the TOML file.
type App struct {
	configPath  string
	backend     string
	path        string
	key         string
	compression int
	debounce    time.Duration
	timezone    string
}

// Flags returns CLI flags for store configuration
func (a *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a TOML config file",
			Sources:     cli.EnvVars("LEVELTRACKER_CONFIG"),
			Destination: &a.configPath,
		},
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Slot backend (badger, sqlite, file, memory)",
			Sources:     cli.EnvVars("LEVELTRACKER_STORAGE_BACKEND"),
			Destination: &a.backend,
		},
		&cli.StringFlag{
			Name:        "storage-path",
			Usage:       "Directory holding the slot backend's files",
			Sources:     cli.EnvVars("LEVELTRACKER_STORAGE_PATH", "STORAGE_PATH"),
			Destination: &a.path,
		},
		&cli.StringFlag{
			Name:        "storage-key",
			Usage:       "Slot key the snapshot is stored under",
			Sources:     cli.EnvVars("LEVELTRACKER_STORAGE_KEY"),
			Destination: &a.key,
		},
		&cli.IntFlag{
			Name:        "compression-level",
			Usage:       "Snapshot zstd compression level (0 disables, 1-4)",
			Sources:     cli.EnvVars("LEVELTRACKER_COMPRESSION_LEVEL", "COMPRESSION_LEVEL"),
			Destination: &a.compression,
		},
		&cli.DurationFlag{
			Name:        "persist-debounce",
			Usage:       "Batch snapshot writes for this long (0 writes on every change)",
			Sources:     cli.EnvVars("LEVELTRACKER_PERSIST_DEBOUNCE"),
			Destination: &a.debounce,
		},
		&cli.StringFlag{
			Name:        "timezone",
			Usage:       "Time zone dates and times are entered in (IANA name or Local)",
			Sources:     cli.EnvVars("LEVELTRACKER_TIMEZONE"),
			Destination: &a.timezone,
		},
	}
}

// Configure builds the application config: defaults, then the TOML file, then set flags.
func (a *App) Configure(c *cli.Command) (*appconfig.Config, error) {
	cfg := appconfig.DefaultConfig()
	if a.configPath != "" {
		loaded, err := appconfig.LoadFile(a.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("storage-backend") {
		cfg.Storage.Backend = a.backend
	}
	if c.IsSet("storage-path") {
		cfg.Storage.Path = a.path
	}
	if c.IsSet("storage-key") {
		cfg.Storage.Key = a.key
	}
	if c.IsSet("compression-level") {
		cfg.Storage.CompressionLevel = a.compression
	}
	if c.IsSet("persist-debounce") {
		cfg.Storage.PersistDebounce.Duration = a.debounce
	}
	if c.IsSet("timezone") {
		cfg.Display.Timezone = a.timezone
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// OpenStore opens the configured slot and loads the store. When the slot backend cannot be
// opened, memoryFallback keeps the session running on an in-memory slot; otherwise the open
// error is returned. The returned function flushes and closes the slot.
func OpenStore(ctx context.Context, cfg *appconfig.Config, memoryFallback bool) (*store.Store, func(), error) {
	logger := logging.From(ctx)

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	codec, err := storage.NewCodec(cfg.Storage.CompressionLevel)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create codec")
	}

	slot, err := storage.NewSlot(cfg.ToStorageConfig())
	if err != nil && !memoryFallback {
		codec.Close()
		return nil, nil, goerr.Wrap(err, "failed to open storage", goerr.V("backend", cfg.Storage.Backend))
	}
	if err != nil {
		logger.Warn("storage unavailable, measurements will not survive this session",
			"backend", cfg.Storage.Backend,
			"error", err,
		)
		slot = storage.NewMemorySlot()
	}

	closer := func() {
		if err := slot.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
		codec.Close()
	}

	st, err := store.Open(ctx, slot, store.WithLocation(loc), store.WithCodec(codec))
	if err != nil {
		closer()
		return nil, nil, err
	}

	logger.Debug("store opened",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"measurements", st.Len(),
	)
	return st, closer, nil
}
