package service

import "math"

// UnitPriceFor returns the per-credit price for a quantity tier. Larger
// orders buy cheaper credits.
func UnitPriceFor(quantity int64) float64 {
	switch {
	case quantity >= 101:
		return 39.90
	case quantity >= 51:
		return 42.90
	case quantity >= 31:
		return 45.90
	case quantity >= 11:
		return 47.90
	default:
		return 49.90
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
