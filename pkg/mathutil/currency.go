// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/shopspring/decimal"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Used for making logical comparisons.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// IsFinite reports whether val is neither NaN nor an infinity.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// Min returns the minimum of two float64 values
func Min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two float64 values
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Accumulator is a running decimal total.
type Accumulator struct {
	total decimal.Decimal
}

// Add adds val to the running total.
func (a *Accumulator) Add(val float64) {
	a.total = a.total.Add(decimal.NewFromFloat(val))
}

// Sub subtracts the other accumulator's total and returns the difference.
func (a Accumulator) Sub(other Accumulator) float64 {
	f, _ := a.total.Sub(other.total).Float64()
	return f
}

// Value returns the running total.
func (a Accumulator) Value() float64 {
	f, _ := a.total.Float64()
	return f
}
