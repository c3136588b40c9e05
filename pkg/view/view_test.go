package view_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/vjranagit/leveltracker/pkg/types"
	"github.com/vjranagit/leveltracker/pkg/view"
)

func measurement(id int64, at time.Time, level float64) types.Measurement {
	return types.Measurement{
		ID:        id,
		Date:      at.Format("2006-01-02"),
		Time:      at.Format("15:04"),
		Level:     level,
		Timestamp: at.UnixMilli(),
	}
}

func sample() []types.Measurement {
	return []types.Measurement{
		measurement(1, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), 40),
		measurement(2, time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), 15.2),
		measurement(3, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), 11.9),
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		level float64
		want  types.Classification
	}{
		{level: 11.9, want: types.ClassLow},
		{level: 12, want: types.ClassNormal},
		{level: 20, want: types.ClassNormal},
		{level: 35, want: types.ClassNormal},
		{level: 35.1, want: types.ClassHigh},
		{level: -3, want: types.ClassLow},
		{level: 1000, want: types.ClassHigh},
	}

	for _, tc := range testCases {
		gt.Value(t, view.Classify(tc.level)).Equal(tc.want)
	}
}

func TestSummarize(t *testing.T) {
	t.Run("empty collection", func(t *testing.T) {
		s := view.Summarize(nil)
		gt.Value(t, s.Average).Equal(0.0)
		gt.Value(t, s.Minimum).Equal(0.0)
		gt.Value(t, s.Maximum).Equal(0.0)
		gt.Value(t, s.Count).Equal(0)
	})

	t.Run("rounds the average to one decimal", func(t *testing.T) {
		s := view.Summarize(sample())
		gt.Value(t, s.Count).Equal(3)
		gt.Value(t, s.Average).Equal(22.4)
		gt.Value(t, s.Minimum).Equal(11.9)
		gt.Value(t, s.Maximum).Equal(40.0)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		items := sample()
		before := append([]types.Measurement{}, items...)
		view.Summarize(items)
		gt.Value(t, items).Equal(before)
	})
}

func TestBreakdown(t *testing.T) {
	rb := view.Breakdown(sample())
	gt.Value(t, rb.Low).Equal(1)
	gt.Value(t, rb.Normal).Equal(1)
	gt.Value(t, rb.High).Equal(1)
	gt.Value(t, rb.LowShare).Equal(1.0 / 3)

	gt.Value(t, view.Breakdown(nil)).Equal(types.RangeBreakdown{})
}

func TestChartSeries(t *testing.T) {
	points := view.ChartSeries(sample(), time.UTC)
	gt.Array(t, points).Length(3).Required()

	gt.Value(t, points[0].Label).Equal("05 Jan")
	gt.Value(t, points[0].FullDate).Equal("05.01.2024 09:00")
	gt.Value(t, points[0].Level).Equal(40.0)
	gt.Value(t, points[2].Label).Equal("12 Jan")

	for i := 1; i < len(points); i++ {
		gt.Bool(t, points[i-1].Timestamp < points[i].Timestamp).True()
	}
}

func TestHistory(t *testing.T) {
	entries := view.History(sample(), time.UTC)
	gt.Array(t, entries).Length(3).Required()

	gt.Value(t, entries[0].Measurement.ID).Equal(int64(3))
	gt.Value(t, entries[0].Classification).Equal(types.ClassLow)
	gt.Value(t, entries[0].Badge.Text).Equal("Low")
	gt.Value(t, entries[0].OutsideWindow).Equal(true)

	gt.Value(t, entries[1].Measurement.ID).Equal(int64(2))
	gt.Value(t, entries[1].Classification).Equal(types.ClassNormal)
	gt.Value(t, entries[1].Badge.Foreground).Equal("#2b8a3e")
	gt.Value(t, entries[1].Formatted).Equal("10 January 2024, 08:00")
	gt.Value(t, entries[1].OutsideWindow).Equal(false)

	gt.Value(t, entries[2].Measurement.ID).Equal(int64(1))
	gt.Value(t, entries[2].Classification).Equal(types.ClassHigh)

	gt.Array(t, view.History(nil, time.UTC)).Length(0)
}

func TestInRecommendedWindow(t *testing.T) {
	day := func(h, m int) types.Measurement {
		return measurement(1, time.Date(2024, 1, 1, h, m, 0, 0, time.UTC), 20)
	}

	gt.Bool(t, view.InRecommendedWindow(day(7, 0), time.UTC)).True()
	gt.Bool(t, view.InRecommendedWindow(day(11, 0), time.UTC)).True()
	gt.Bool(t, view.InRecommendedWindow(day(6, 59), time.UTC)).False()
	gt.Bool(t, view.InRecommendedWindow(day(11, 1), time.UTC)).False()
}

func TestRenderChart(t *testing.T) {
	t.Run("empty collection", func(t *testing.T) {
		var buf bytes.Buffer
		gt.Error(t, view.RenderChart(&buf, nil, view.ChartOptions{})).Is(view.ErrNoData)
	})

	t.Run("png", func(t *testing.T) {
		var buf bytes.Buffer
		gt.NoError(t, view.RenderChart(&buf, sample(), view.ChartOptions{Location: time.UTC})).Required()
		gt.Bool(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG"))).True()
	})

	t.Run("svg with a single point", func(t *testing.T) {
		var buf bytes.Buffer
		items := sample()[:1]
		gt.NoError(t, view.RenderChart(&buf, items, view.ChartOptions{Format: view.ChartSVG, Location: time.UTC})).Required()
		gt.String(t, buf.String()).Contains("<svg")
	})
}
