// Package features turns an hourly energy series into fixed-layout feature
// vectors for supervised regression. The same code path builds vectors for
// training rows and for each step of a forecast rollout.
package features

import (
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// NumFeatures is the width of a Vector.
const NumFeatures = 10

// MinLookback is the number of past hours a vector needs: lag_24 and roll_24
// both reach back a full day.
const MinLookback = 24

// Column indices of a Vector.
const (
	HourSin = iota
	HourCos
	DowSin
	DowCos
	Lag1
	Lag24
	Roll3
	Roll6
	Roll24
	Temperature
)

var names = [NumFeatures]string{
	HourSin:     "hour_sin",
	HourCos:     "hour_cos",
	DowSin:      "dow_sin",
	DowCos:      "dow_cos",
	Lag1:        "lag_1",
	Lag24:       "lag_24",
	Roll3:       "roll_3",
	Roll6:       "roll_6",
	Roll24:      "roll_24",
	Temperature: "temperature",
}

// Names returns the feature names in column order.
func Names() []string {
	return slices.Clone(names[:])
}

// SameOrder reports whether order is exactly the column order of Vector.
func SameOrder(order []string) bool {
	return slices.Equal(order, names[:])
}

// Vector is one row of the feature matrix, laid out as Names().
type Vector [NumFeatures]float64

// Slice returns the vector as a fresh slice, the shape regressors consume.
func (v Vector) Slice() []float64 {
	return slices.Clone(v[:])
}

// Get returns the value of the named feature.
func (v Vector) Get(name string) (float64, bool) {
	i := slices.Index(names[:], name)
	if i < 0 {
		return 0, false
	}
	return v[i], true
}

// Row pairs a vector with its label, the energy observed at Timestamp.
type Row struct {
	Timestamp time.Time
	X         Vector
	Label     float64
}

// EncodeHour maps hour-of-day onto the unit circle.
func EncodeHour(hour int) (sin, cos float64) {
	a := 2 * math.Pi * float64(hour) / 24.0
	return math.Sin(a), math.Cos(a)
}

// EncodeWeekday maps day-of-week (Monday = 0) onto the unit circle.
func EncodeWeekday(dow int) (sin, cos float64) {
	a := 2 * math.Pi * float64(dow) / 7.0
	return math.Sin(a), math.Cos(a)
}

// Weekday returns the day of week with Monday = 0 and Sunday = 6.
func Weekday(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}

// compose builds the vector for timestamp ts. past holds every energy value
// strictly before ts, oldest first, and must contain at least MinLookback
// entries. The label at ts is never visible here.
func compose(ts time.Time, temp float64, past []float64) Vector {
	var v Vector
	v[HourSin], v[HourCos] = EncodeHour(ts.Hour())
	v[DowSin], v[DowCos] = EncodeWeekday(Weekday(ts))

	n := len(past)
	v[Lag1] = past[n-1]
	v[Lag24] = past[n-24]
	v[Roll3] = stat.Mean(past[n-3:], nil)
	v[Roll6] = stat.Mean(past[n-6:], nil)
	v[Roll24] = stat.Mean(past[n-24:], nil)
	v[Temperature] = temp
	return v
}
