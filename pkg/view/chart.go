package view

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vjranagit/leveltracker/pkg/types"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when a chart is requested for an empty collection
var ErrNoData = errors.New("no measurements to chart")

// ChartFormat selects the image encoding
type ChartFormat string

const (
	ChartPNG ChartFormat = "png"
	ChartSVG ChartFormat = "svg"
)

// Chart sizing defaults
const (
	DefaultChartWidth  = 1024
	DefaultChartHeight = 400
)

var (
	levelColor = drawing.ColorFromHex("667eea")
	bandColor  = drawing.ColorFromHex("ff6b6b")
)

// ChartOptions controls RenderChart
type ChartOptions struct {
	Format   ChartFormat
	Width    int
	Height   int
	Location *time.Location
}

// RenderChart draws the level line with dashed reference lines at both band edges
func RenderChart(w io.Writer, items []types.Measurement, opts ChartOptions) error {
	if len(items) == 0 {
		return ErrNoData
	}
	if opts.Width <= 0 {
		opts.Width = DefaultChartWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultChartHeight
	}

	xs := make([]time.Time, 0, len(items)+1)
	ys := make([]float64, 0, len(items)+1)
	for _, m := range items {
		xs = append(xs, At(m, opts.Location))
		ys = append(ys, m.Level)
	}
	// go-chart rejects a zero-width X range; pad a lone point with a twin a minute later.
	if len(xs) == 1 || xs[0].Equal(xs[len(xs)-1]) {
		xs = append(xs, xs[len(xs)-1].Add(time.Minute))
		ys = append(ys, ys[len(ys)-1])
	}
	first, last := xs[0], xs[len(xs)-1]

	lo, hi := BandLow, BandHigh
	for _, y := range ys {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	pad := (hi - lo) * 0.1

	graph := chart.Chart{
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(ShortDateLayout),
		},
		YAxis: chart.YAxis{
			Name:  Unit,
			Range: &chart.ContinuousRange{Min: math.Max(0, lo-pad), Max: hi + pad},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Level",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: levelColor,
					StrokeWidth: 3,
					DotColor:    levelColor,
					DotWidth:    5,
				},
			},
			referenceLine("Lower limit", first, last, BandLow),
			referenceLine("Upper limit", first, last, BandHigh),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var provider chart.RendererProvider = chart.PNG
	if opts.Format == ChartSVG {
		provider = chart.SVG
	}
	if err := graph.Render(provider, w); err != nil {
		return goerr.Wrap(err, "failed to render chart", goerr.V("points", len(items)))
	}
	return nil
}

func referenceLine(name string, from, to time.Time, y float64) chart.TimeSeries {
	return chart.TimeSeries{
		Name:    name,
		XValues: []time.Time{from, to},
		YValues: []float64{y, y},
		Style: chart.Style{
			StrokeColor:     bandColor,
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5, 5},
		},
	}
}
