package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	appconfig "github.com/vjranagit/leveltracker/internal/config"
	"github.com/vjranagit/leveltracker/pkg/cli/config"
	"github.com/vjranagit/leveltracker/pkg/store"
	"github.com/vjranagit/leveltracker/pkg/view"
)

type statsOutput struct {
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
	Minimum  float64 `json:"minimum"`
	Maximum  float64 `json:"maximum"`
	Low      int     `json:"low"`
	Normal   int     `json:"normal"`
	High     int     `json:"high"`
	Unit     string  `json:"unit"`
	BandLow  float64 `json:"band_low"`
	BandHigh float64 `json:"band_high"`
}

func cmdStats() *cli.Command {
	var appCfg config.App
	var asJSON bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the summary as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, appCfg.Flags()...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show average, minimum, maximum and band breakdown",
		Flags: flags,
		Action: withStore(&appCfg, func(ctx context.Context, c *cli.Command, st *store.Store, cfg *appconfig.Config) error {
			items := st.Measurements()
			sum := view.Summarize(items)
			rb := view.Breakdown(items)
			w := c.Root().Writer

			if asJSON {
				return writeJSON(w, statsOutput{
					Count:    sum.Count,
					Average:  sum.Average,
					Minimum:  sum.Minimum,
					Maximum:  sum.Maximum,
					Low:      rb.Low,
					Normal:   rb.Normal,
					High:     rb.High,
					Unit:     view.Unit,
					BandLow:  view.BandLow,
					BandHigh: view.BandHigh,
				})
			}

			if sum.Count == 0 {
				_, err := fmt.Fprintln(w, "No measurements yet")
				return err
			}

			bold := color.New(color.Bold)
			lines := []string{
				fmt.Sprintf("Measurements: %s", bold.Sprint(sum.Count)),
				fmt.Sprintf("Average:      %s %s", bold.Sprintf("%.1f", sum.Average), view.Unit),
				fmt.Sprintf("Minimum:      %s %s", bold.Sprintf("%.1f", sum.Minimum), view.Unit),
				fmt.Sprintf("Maximum:      %s %s", bold.Sprintf("%.1f", sum.Maximum), view.Unit),
				fmt.Sprintf("Reference:    %.0f-%.0f %s", view.BandLow, view.BandHigh, view.Unit),
				fmt.Sprintf("Below:        %d (%.0f%%)", rb.Low, rb.LowShare*100),
				fmt.Sprintf("Within:       %d (%.0f%%)", rb.Normal, rb.NormalShare*100),
				fmt.Sprintf("Above:        %d (%.0f%%)", rb.High, rb.HighShare*100),
			}
			_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
			return err
		}),
	}
}

func cmdChart() *cli.Command {
	var appCfg config.App
	var output string
	var format string
	var width, height int

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "File to write the chart to",
			Required:    true,
			Destination: &output,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Image format (png, svg), taken from the output extension when omitted",
			Destination: &format,
		},
		&cli.IntFlag{
			Name:        "width",
			Usage:       "Chart width in pixels",
			Destination: &width,
		},
		&cli.IntFlag{
			Name:        "height",
			Usage:       "Chart height in pixels",
			Destination: &height,
		},
	}
	flags = append(flags, appCfg.Flags()...)

	return &cli.Command{
		Name:  "chart",
		Usage: "Render the level chart to an image file",
		Flags: flags,
		Action: withStore(&appCfg, func(ctx context.Context, c *cli.Command, st *store.Store, cfg *appconfig.Config) error {
			chartFormat, err := resolveChartFormat(format, output)
			if err != nil {
				return err
			}

			// #nosec G304 - path is provided by the operator
			f, err := os.Create(output)
			if err != nil {
				return goerr.Wrap(err, "failed to create chart file", goerr.V("path", output))
			}

			if !c.IsSet("width") {
				width = cfg.Display.ChartWidth
			}
			if !c.IsSet("height") {
				height = cfg.Display.ChartHeight
			}

			err = view.RenderChart(f, st.Measurements(), view.ChartOptions{
				Format:   chartFormat,
				Width:    width,
				Height:   height,
				Location: st.Location(),
			})
			if closeErr := f.Close(); err == nil && closeErr != nil {
				err = goerr.Wrap(closeErr, "failed to close chart file")
			}
			if err != nil {
				_ = os.Remove(output)
				if errors.Is(err, view.ErrNoData) {
					return goerr.Wrap(err, "nothing to chart yet")
				}
				return err
			}

			_, err = fmt.Fprintf(c.Root().Writer, "Chart written to %s\n", output)
			return err
		}),
	}
}

func resolveChartFormat(format, output string) (view.ChartFormat, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	}
	switch view.ChartFormat(strings.ToLower(format)) {
	case view.ChartPNG, "":
		return view.ChartPNG, nil
	case view.ChartSVG:
		return view.ChartSVG, nil
	default:
		return "", goerr.New("unsupported chart format", goerr.V("format", format))
	}
}
