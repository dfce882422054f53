// Package util provides common utility functions for price calculations.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}

// Clamp constrains x to the inclusive range [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// BasisPoints returns part expressed in basis points of whole (1 bp = 0.01%).
// Returns 0 when whole is zero so crossed or empty quotes don't blow up
// downstream ratios.
func BasisPoints(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return (part / whole) * 10000
}
