// Package carbon converts energy forecasts into CO₂ estimates with a single
// linear emission factor.
package carbon

import (
	"errors"
	"fmt"
	"math"
)

// DefaultFactor is the grid emission factor in grams of CO₂ per kWh.
const DefaultFactor = 220.0

var ErrInvalidFactor = errors.New("invalid emission factor")

type Estimate struct {
	FactorGPerKWh float64   `json:"factor_g_per_kwh"`
	PerHour       []float64 `json:"co2_g_per_hour"`
	Total         float64   `json:"co2_total_g"`
}

// Convert multiplies every point by factor and sums the result.
func Convert(points []float64, factor float64) (Estimate, error) {
	if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Estimate{}, fmt.Errorf("%w: %v g/kWh", ErrInvalidFactor, factor)
	}
	est := Estimate{FactorGPerKWh: factor, PerHour: make([]float64, len(points))}
	for i, p := range points {
		est.PerHour[i] = p * factor
		est.Total += est.PerHour[i]
	}
	return est, nil
}
