package features

import (
	"fmt"
	"slices"
	"time"

	"energy_forecast/internal/model"
)

// DefaultTemperature is the neutral value used when a history carries no
// temperature readings at all.
const DefaultTemperature = 20.0

// Series is an hourly, gap-free energy and temperature series for one
// building. A forecast rollout appends its own predictions to it.
type Series struct {
	buildingID string
	start      time.Time
	energy     []float64
	temp       []float64
}

// NewSeries validates ms and fills missing temperatures forward, then
// backward. With no temperature at all, every hour gets fallback.
func NewSeries(ms []model.Measurement, fallback float64) (*Series, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("empty history: %w", model.ErrInsufficientData)
	}
	if err := model.CheckHourly(ms); err != nil {
		return nil, err
	}

	s := &Series{
		buildingID: ms[0].BuildingID,
		start:      ms[0].Timestamp,
		energy:     make([]float64, len(ms)),
		temp:       fillTemperature(ms, fallback),
	}
	for i, m := range ms {
		s.energy[i] = m.Energy
	}
	return s, nil
}

func fillTemperature(ms []model.Measurement, fallback float64) []float64 {
	temps := make([]float64, len(ms))
	first := -1
	var last float64
	for i, m := range ms {
		if m.Temperature != nil {
			last = *m.Temperature
			if first < 0 {
				first = i
			}
		}
		if first >= 0 {
			temps[i] = last
		}
	}

	if first < 0 {
		for i := range temps {
			temps[i] = fallback
		}
		return temps
	}
	for i := 0; i < first; i++ {
		temps[i] = *ms[first].Temperature
	}
	return temps
}

func (s *Series) BuildingID() string { return s.buildingID }

func (s *Series) Len() int { return len(s.energy) }

// TimeAt returns the timestamp of index i.
func (s *Series) TimeAt(i int) time.Time {
	return s.start.Add(time.Duration(i) * time.Hour)
}

// Last returns the timestamp of the newest entry.
func (s *Series) Last() time.Time {
	return s.TimeAt(len(s.energy) - 1)
}

func (s *Series) EnergyAt(i int) float64 { return s.energy[i] }

func (s *Series) TemperatureAt(i int) float64 { return s.temp[i] }

// Energy returns a copy of the energy column.
func (s *Series) Energy() []float64 { return slices.Clone(s.energy) }

// VectorAt builds the vector for index i from entries before i plus the
// temperature at i.
func (s *Series) VectorAt(i int) (Vector, error) {
	if i < MinLookback || i >= len(s.energy) {
		return Vector{}, fmt.Errorf("index %d outside [%d, %d)", i, MinLookback, len(s.energy))
	}
	return compose(s.TimeAt(i), s.temp[i], s.energy[:i]), nil
}

// Next builds the vector for the hour after Last, given its temperature.
func (s *Series) Next(temp float64) (Vector, error) {
	if len(s.energy) < MinLookback {
		return Vector{}, fmt.Errorf("series has %d hours, need %d", len(s.energy), MinLookback)
	}
	return compose(s.TimeAt(len(s.energy)), temp, s.energy), nil
}

// Append adds the hour after Last.
func (s *Series) Append(energy, temp float64) {
	s.energy = append(s.energy, energy)
	s.temp = append(s.temp, temp)
}

// Rows returns one labelled row per index that has a full lookback window.
func (s *Series) Rows() []Row {
	if len(s.energy) <= MinLookback {
		return nil
	}
	rows := make([]Row, 0, len(s.energy)-MinLookback)
	for i := MinLookback; i < len(s.energy); i++ {
		rows = append(rows, Row{
			Timestamp: s.TimeAt(i),
			X:         compose(s.TimeAt(i), s.temp[i], s.energy[:i]),
			Label:     s.energy[i],
		})
	}
	return rows
}

// Build validates ms and returns the labelled feature rows. Rows without
// 24 h of history are dropped, so n measurements give n-24 rows.
func Build(ms []model.Measurement, fallback float64) ([]Row, error) {
	s, err := NewSeries(ms, fallback)
	if err != nil {
		return nil, err
	}
	return s.Rows(), nil
}
