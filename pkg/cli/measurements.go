package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	appconfig "github.com/vjranagit/leveltracker/internal/config"
	"github.com/vjranagit/leveltracker/pkg/cli/config"
	"github.com/vjranagit/leveltracker/pkg/store"
	"github.com/vjranagit/leveltracker/pkg/types"
	"github.com/vjranagit/leveltracker/pkg/view"
)

// withStore opens the configured store around a command action
func withStore(appCfg *config.App, fn func(ctx context.Context, c *cli.Command, st *store.Store, cfg *appconfig.Config) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := appCfg.Configure(c)
		if err != nil {
			return err
		}

		st, closeStore, err := config.OpenStore(ctx, cfg, false)
		if err != nil {
			return goerr.Wrap(err, "failed to open store")
		}
		defer closeStore()

		return fn(ctx, c, st, cfg)
	}
}

func cmdAdd() *cli.Command {
	var appCfg config.App
	var candidate types.Candidate

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "date",
			Aliases:     []string{"d"},
			Usage:       "Measurement date (YYYY-MM-DD)",
			Required:    true,
			Destination: &candidate.Date,
		},
		&cli.StringFlag{
			Name:        "time",
			Aliases:     []string{"t"},
			Usage:       "Time of day (HH:MM), defaults to " + store.DefaultTime,
			Destination: &candidate.Time,
		},
		&cli.StringFlag{
			Name:        "level",
			Aliases:     []string{"l"},
			Usage:       "Level in " + view.Unit,
			Required:    true,
			Destination: &candidate.Level,
		},
		&cli.StringFlag{
			Name:        "notes",
			Aliases:     []string{"n"},
			Usage:       "Free-form notes",
			Destination: &candidate.Notes,
		},
	}
	flags = append(flags, appCfg.Flags()...)

	return &cli.Command{
		Name:  "add",
		Usage: "Record a measurement",
		Flags: flags,
		Action: withStore(&appCfg, func(ctx context.Context, c *cli.Command, st *store.Store, cfg *appconfig.Config) error {
			m, err := st.Add(ctx, candidate)
			if err != nil {
				return err
			}

			class := view.Classify(m.Level)
			_, err = fmt.Fprintf(c.Root().Writer, "Added %d: %.1f %s on %s (%s)\n",
				m.ID, m.Level, view.Unit,
				view.At(m, st.Location()).Format(view.LongDateLayout),
				class,
			)
			return err
		}),
	}
}

func cmdRemove() *cli.Command {
	var appCfg config.App

	return &cli.Command{
		Name:      "rm",
		Usage:     "Remove a measurement by id",
		ArgsUsage: "<id>",
		Flags:     appCfg.Flags(),
		Action: withStore(&appCfg, func(ctx context.Context, c *cli.Command, st *store.Store, cfg *appconfig.Config) error {
			if c.NArg() != 1 {
				return goerr.New("exactly one measurement id is required")
			}
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return goerr.Wrap(err, "invalid measurement id", goerr.V("id", c.Args().First()))
			}

			if !st.Remove(ctx, id) {
				_, err = fmt.Fprintf(c.Root().Writer, "No measurement with id %d\n", id)
				return err
			}
			_, err = fmt.Fprintf(c.Root().Writer, "Removed %d\n", id)
			return err
		}),
	}
}

func cmdList() *cli.Command {
	var appCfg config.App
	var asJSON bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the history as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, appCfg.Flags()...)

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "Show the measurement history, newest first",
		Flags:   flags,
		Action: withStore(&appCfg, func(ctx context.Context, c *cli.Command, st *store.Store, cfg *appconfig.Config) error {
			history := view.History(st.Measurements(), st.Location())
			w := c.Root().Writer

			if asJSON {
				return writeJSON(w, history)
			}
			if len(history) == 0 {
				_, err := fmt.Fprintln(w, "No measurements yet")
				return err
			}

			for _, e := range history {
				if err := printEntry(w, e); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

var badgeColors = map[types.Classification]*color.Color{
	types.ClassLow:    color.New(color.FgRed, color.Bold),
	types.ClassNormal: color.New(color.FgGreen, color.Bold),
	types.ClassHigh:   color.New(color.FgRed, color.Bold),
}

func printEntry(w io.Writer, e types.HistoryEntry) error {
	badge := fmt.Sprintf("[%s]", e.Badge.Text)
	if c, ok := badgeColors[e.Classification]; ok {
		badge = c.Sprint(badge)
	}

	line := fmt.Sprintf("%-14d %-24s %6.1f %s  %s", e.Measurement.ID, e.Formatted, e.Measurement.Level, view.Unit, badge)
	if e.OutsideWindow {
		line += color.YellowString("  (outside 07:00-11:00)")
	}
	if e.Measurement.Notes != "" {
		line += "  " + e.Measurement.Notes
	}

	_, err := fmt.Fprintln(w, line)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}
