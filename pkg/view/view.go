// Package view computes display projections of the measurement collection. Every function
// is pure: it neither mutates its input nor touches persistence.
package view

import (
	"math"
	"time"

	"github.com/vjranagit/leveltracker/pkg/types"
)

// Reference band, both edges inclusive in "normal"
const (
	BandLow  = 12.0
	BandHigh = 35.0
)

// Unit is the display unit of a level
const Unit = "nmol/L"

// Recommended measuring window, [07:00, 11:00]
const (
	WindowStartHour = 7
	WindowEndHour   = 11
)

// Display layouts
const (
	ShortDateLayout = "02 Jan"
	FullDateLayout  = "02.01.2006 15:04"
	LongDateLayout  = "02 January 2006, 15:04"
)

var badges = map[types.Classification]types.Badge{
	types.ClassLow:    {Text: "Low", Foreground: "#c92a2a", Background: "#ffe3e3", Border: "#ff6b6b"},
	types.ClassNormal: {Text: "Normal", Foreground: "#2b8a3e", Background: "#d3f9d8", Border: "#51cf66"},
	types.ClassHigh:   {Text: "High", Foreground: "#c92a2a", Background: "#ffe3e3", Border: "#ff6b6b"},
}

// Classify places level relative to the reference band
func Classify(level float64) types.Classification {
	switch {
	case level < BandLow:
		return types.ClassLow
	case level > BandHigh:
		return types.ClassHigh
	default:
		return types.ClassNormal
	}
}

// BadgeFor returns the colour treatment of a classification
func BadgeFor(c types.Classification) types.Badge {
	return badges[c]
}

// Summarize computes the average (one decimal), minimum and maximum level.
// All three are 0 for an empty collection.
func Summarize(items []types.Measurement) types.Summary {
	if len(items) == 0 {
		return types.Summary{}
	}

	sum := 0.0
	minLevel, maxLevel := items[0].Level, items[0].Level
	for _, m := range items {
		sum += m.Level
		minLevel = math.Min(minLevel, m.Level)
		maxLevel = math.Max(maxLevel, m.Level)
	}

	return types.Summary{
		Count:   len(items),
		Average: roundTo(sum/float64(len(items)), 1),
		Minimum: minLevel,
		Maximum: maxLevel,
	}
}

// Breakdown counts how many measurements fall below, inside and above the band
func Breakdown(items []types.Measurement) types.RangeBreakdown {
	var rb types.RangeBreakdown
	if len(items) == 0 {
		return rb
	}

	for _, m := range items {
		switch Classify(m.Level) {
		case types.ClassLow:
			rb.Low++
		case types.ClassHigh:
			rb.High++
		default:
			rb.Normal++
		}
	}

	total := float64(len(items))
	rb.LowShare = float64(rb.Low) / total
	rb.NormalShare = float64(rb.Normal) / total
	rb.HighShare = float64(rb.High) / total
	return rb
}

// ChartSeries returns one point per measurement in chronological order
func ChartSeries(items []types.Measurement, loc *time.Location) []types.ChartPoint {
	points := make([]types.ChartPoint, 0, len(items))
	for _, m := range items {
		at := At(m, loc)
		points = append(points, types.ChartPoint{
			Label:     at.Format(ShortDateLayout),
			Level:     m.Level,
			FullDate:  at.Format(FullDateLayout),
			Timestamp: m.Timestamp,
		})
	}
	return points
}

// History returns the collection newest first, each entry annotated for display
func History(items []types.Measurement, loc *time.Location) []types.HistoryEntry {
	entries := make([]types.HistoryEntry, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		m := items[i]
		class := Classify(m.Level)
		entries = append(entries, types.HistoryEntry{
			Measurement:    m,
			Classification: class,
			Badge:          BadgeFor(class),
			Formatted:      At(m, loc).Format(LongDateLayout),
			OutsideWindow:  !InRecommendedWindow(m, loc),
		})
	}
	return entries
}

// InRecommendedWindow reports whether m was taken between 07:00 and 11:00 inclusive.
// Measurements without an explicit time (00:00) count as outside.
func InRecommendedWindow(m types.Measurement, loc *time.Location) bool {
	at := At(m, loc)
	minutes := at.Hour()*60 + at.Minute()
	return minutes >= WindowStartHour*60 && minutes <= WindowEndHour*60
}

// At converts the stored timestamp back to a time in loc
func At(m types.Measurement, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(m.Timestamp).In(loc)
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
