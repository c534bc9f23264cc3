package model

import (
	"fmt"
	"math"
	"time"
)

// Measurement is one hour of metered energy for a building.
type Measurement struct {
	BuildingID  string
	Timestamp   time.Time // UTC, truncated to the hour
	Energy      float64   // kWh during the hour
	Temperature *float64  // °C, nil when not recorded
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Temp returns a pointer to v, for building measurements inline.
func Temp(v float64) *float64 {
	return &v
}

// Normalize converts the timestamp to UTC and validates the measurement.
func (m Measurement) Normalize() (Measurement, error) {
	if m.BuildingID == "" {
		return m, fmt.Errorf("%w: empty building id", ErrInvalidMeasurement)
	}
	if math.IsNaN(m.Energy) || math.IsInf(m.Energy, 0) || m.Energy < 0 {
		return m, fmt.Errorf("%w: energy %v at %s", ErrInvalidMeasurement, m.Energy, m.Timestamp.Format(time.RFC3339))
	}
	if m.Temperature != nil && (math.IsNaN(*m.Temperature) || math.IsInf(*m.Temperature, 0)) {
		return m, fmt.Errorf("%w: temperature at %s", ErrInvalidMeasurement, m.Timestamp.Format(time.RFC3339))
	}
	ts := m.Timestamp.UTC()
	if !ts.Equal(ts.Truncate(time.Hour)) {
		return m, fmt.Errorf("%w: timestamp %s is not hour aligned", ErrInvalidMeasurement, ts.Format(time.RFC3339))
	}
	m.Timestamp = ts
	return m, nil
}

// CheckHourly verifies that ms belongs to one building and is strictly
// ascending with exactly one hour between consecutive entries.
func CheckHourly(ms []Measurement) error {
	for i := 1; i < len(ms); i++ {
		prev, cur := ms[i-1], ms[i]
		if cur.BuildingID != prev.BuildingID {
			return fmt.Errorf("%w: mixed buildings %q and %q", ErrUnorderedHistory, prev.BuildingID, cur.BuildingID)
		}
		step := cur.Timestamp.Sub(prev.Timestamp)
		switch {
		case step <= 0:
			return fmt.Errorf("%w: %s does not follow %s", ErrUnorderedHistory,
				cur.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339))
		case step != time.Hour:
			return &HistoryGapError{After: prev.Timestamp, Before: cur.Timestamp}
		}
	}
	return nil
}

// Span returns the time range covered by ms, which must be sorted.
func Span(ms []Measurement) (TimeRange, bool) {
	if len(ms) == 0 {
		return TimeRange{}, false
	}
	return TimeRange{Start: ms[0].Timestamp, End: ms[len(ms)-1].Timestamp}, true
}
