package cli

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/vjranagit/leveltracker/pkg/cli/config"
	"github.com/vjranagit/leveltracker/pkg/utils/logging"
)

func Run(ctx context.Context, args []string, version string) error {
	if err := newApp(version, os.Stdout).Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}
	return nil
}

func newApp(version string, w io.Writer) *cli.Command {
	var loggerCfg config.Logger
	var closer func()

	return &cli.Command{
		Name:    "leveltracker",
		Usage:   "Personal testosterone level logger",
		Version: version,
		Writer:  w,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			logging.Default().Debug("Starting leveltracker", "logger", &loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdAdd(),
			cmdRemove(),
			cmdList(),
			cmdStats(),
			cmdChart(),
		},
	}
}
