package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vjranagit/leveltracker/pkg/api"
	"github.com/vjranagit/leveltracker/pkg/cli/config"
	"github.com/vjranagit/leveltracker/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var appCfg config.App

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Sources:     cli.EnvVars("LEVELTRACKER_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, appCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the tracker web page and JSON API",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := appCfg.Configure(c)
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.Server.ListenAddr = addr
			}

			st, closeStore, err := config.OpenStore(ctx, cfg, true)
			if err != nil {
				return goerr.Wrap(err, "failed to open store")
			}
			defer closeStore()

			server := api.NewServer(cfg.Server.ListenAddr, st, api.Options{
				Timeout:     cfg.Server.Timeout.Duration,
				ChartWidth:  cfg.Display.ChartWidth,
				ChartHeight: cfg.Display.ChartHeight,
			})

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Server listening",
					"addr", cfg.Server.ListenAddr,
					"backend", cfg.Storage.Backend,
					"measurements", st.Len(),
				)
				errCh <- server.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Shutdown signal received", "signal", sig.String())
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
			defer cancel()

			if err := server.Stop(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server")
			}
			// retries a snapshot write that failed during the session
			if err := st.Persist(shutdownCtx); err != nil {
				logging.Default().Warn("final persist failed", "error", err)
			}

			logging.Default().Info("Server stopped")
			return nil
		},
	}
}
