package types

// Measurement represents a single recorded level
type Measurement struct {
	ID        int64   `json:"id"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Level     float64 `json:"level"`
	Notes     string  `json:"notes" masq:"secret"`
	Timestamp int64   `json:"timestamp"`
}

// Candidate is the raw, unvalidated input of an add request
type Candidate struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Level string `json:"level"`
	Notes string `json:"notes" masq:"secret"`
}

// Classification places a level relative to the reference band
type Classification string

const (
	ClassLow    Classification = "low"
	ClassNormal Classification = "normal"
	ClassHigh   Classification = "high"
)

// Summary holds the statistics tiles
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
}

// RangeBreakdown counts measurements below, inside and above the reference band
type RangeBreakdown struct {
	Low         int     `json:"low"`
	Normal      int     `json:"normal"`
	High        int     `json:"high"`
	LowShare    float64 `json:"low_share"`
	NormalShare float64 `json:"normal_share"`
	HighShare   float64 `json:"high_share"`
}

// ChartPoint is one point of the chronological chart series
type ChartPoint struct {
	Label     string  `json:"date"`
	Level     float64 `json:"level"`
	FullDate  string  `json:"full_date"`
	Timestamp int64   `json:"timestamp"`
}

// Badge describes how a classification is painted
type Badge struct {
	Text       string `json:"text"`
	Foreground string `json:"foreground"`
	Background string `json:"background"`
	Border     string `json:"border"`
}

// HistoryEntry is one row of the newest-first history listing
type HistoryEntry struct {
	Measurement    Measurement    `json:"measurement"`
	Classification Classification `json:"classification"`
	Badge          Badge          `json:"badge"`
	Formatted      string         `json:"formatted"`
	OutsideWindow  bool           `json:"outside_window"`
}
