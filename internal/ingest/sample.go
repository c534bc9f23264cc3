package ingest

import (
	"math"
	"math/rand/v2"
	"time"

	"energy_forecast/internal/model"
)

// Sample generates days of synthetic hourly load ending just before the hour
// of end: a daily cosine around 150 kWh with N(0, 5) noise, and a sine
// temperature around 20 °C. The same seed always gives the same series.
func Sample(buildingID string, days int, end time.Time, seed uint64) []model.Measurement {
	rng := rand.New(rand.NewPCG(seed, 0))
	n := days * 24
	start := end.UTC().Truncate(time.Hour).Add(-time.Duration(n) * time.Hour)

	ms := make([]model.Measurement, n)
	for i := range ms {
		ts := start.Add(time.Duration(i) * time.Hour)
		a := 2 * math.Pi * float64(ts.Hour()) / 24.0
		heat := 150 + 40*math.Cos(a) + rng.NormFloat64()*5
		ms[i] = model.Measurement{
			BuildingID:  buildingID,
			Timestamp:   ts,
			Energy:      round2(math.Max(0, heat)),
			Temperature: model.Temp(round2(20 + 10*math.Sin(a))),
		}
	}
	return ms
}

// ToPayload wraps measurements of one building as an ingest body.
func ToPayload(buildingID string, ms []model.Measurement) Payload {
	p := Payload{BuildingID: buildingID, Records: make([]Record, len(ms))}
	for i, m := range ms {
		energy := m.Energy
		p.Records[i] = Record{
			TS:          m.Timestamp.Format(time.RFC3339),
			Energy:      &energy,
			Temperature: m.Temperature,
		}
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
