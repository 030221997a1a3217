package utils

import "math"

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// QuantizeUnit maps a sample in [0,1] to 0..255, clamping first and rounding half to even.
func QuantizeUnit(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.RoundToEven(Clamp01(v) * 255))
}
