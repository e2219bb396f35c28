// Package dataprovider loads daily case-count histories, either from the
// covid19-in history API or from CSV, and reduces them to the series and
// window minima the calibration needs.
package dataprovider

import (
	"context"
	"slices"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

// DayLayout is the date format used by the history API and CSV files.
const DayLayout = "2006-01-02"

// Record is one day of cumulative counts.
type Record struct {
	Day       time.Time `json:"day"`
	Total     float64   `json:"total"`
	Recovered float64   `json:"recovered"`
	Deaths    float64   `json:"deaths"`
}

// Infected returns the active case count, total - recovered - deaths.
func (r Record) Infected() float64 {
	return r.Total - r.Recovered - r.Deaths
}

// Provider returns the records of the inclusive window [from, to] ordered by day.
type Provider interface {
	History(ctx context.Context, from, to time.Time) ([]Record, error)
}

// Window sorts records by day and keeps those within [from, to]. A zero
// bound is open.
func Window(records []Record, from, to time.Time) []Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int { return a.Day.Compare(b.Day) })

	out := sorted[:0]
	for _, r := range sorted {
		if !from.IsZero() && r.Day.Before(from) {
			continue
		}
		if !to.IsZero() && r.Day.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Series returns the infected count of each record.
func Series(records []Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Infected()
	}
	return out
}

// Minima are the smallest observed counts over a window.
type Minima struct {
	Infected  float64 `json:"infected"`
	Recovered float64 `json:"recovered"`
	Deaths    float64 `json:"deaths"`
}

// WindowMinima returns the per-column minima of records, zero for an empty slice.
func WindowMinima(records []Record) Minima {
	if len(records) == 0 {
		return Minima{}
	}
	recovered := make([]float64, len(records))
	deaths := make([]float64, len(records))
	for i, r := range records {
		recovered[i] = r.Recovered
		deaths[i] = r.Deaths
	}
	return Minima{
		Infected:  utils.MinSlice(Series(records)),
		Recovered: utils.MinSlice(recovered),
		Deaths:    utils.MinSlice(deaths),
	}
}

// ParseDay parses a YYYY-MM-DD date in UTC. An empty string yields the zero time.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DayLayout, s)
}
