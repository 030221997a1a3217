package utils

import (
	"math"
	"testing"
)

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQuantizeUnit(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-1, 0},
		{0, 0},
		{1, 255},
		{2, 255},
		{0.5, 128}, // 127.5 rounds to even
		{100.0 / 255, 100},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := QuantizeUnit(tt.in); got != tt.want {
			t.Errorf("QuantizeUnit(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
