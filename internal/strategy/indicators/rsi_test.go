package indicators

import (
	"testing"
)

func TestComputeRSI(t *testing.T) {
	closes := []float64{100.0, 102.0, 101.0, 103.0, 102.0, 104.0} // +2 -1 +2 -1 +2

	tests := []struct {
		name          string
		closes        []float64
		period        int
		expectedValue float64
	}{
		{
			name:          "last three changes only",
			closes:        closes,
			period:        3,
			expectedValue: 80.0, // gains 4/3, losses 1/3
		},
		{
			name:          "whole window",
			closes:        closes,
			period:        5,
			expectedValue: 75.0, // gains 6/5, losses 2/5
		},
		{
			name:          "Insufficient data falls back to neutral",
			closes:        closes,
			period:        6,
			expectedValue: NeutralRSI,
		},
		{
			name:          "All gains",
			closes:        []float64{100, 102, 104, 106},
			period:        3,
			expectedValue: 100.0,
		},
		{
			name:          "All losses",
			closes:        []float64{106, 104, 102, 100},
			period:        3,
			expectedValue: 0.0,
		},
		{
			name:          "Flat prices have no losses",
			closes:        []float64{100, 100, 100, 100},
			period:        3,
			expectedValue: 100.0,
		},
		{
			name:          "Non-positive period",
			closes:        closes,
			period:        0,
			expectedValue: NeutralRSI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := ComputeRSI(tt.closes, tt.period)
			// Allow for small floating point differences
			if value-tt.expectedValue > 0.0001 || value-tt.expectedValue < -0.0001 {
				t.Errorf("Expected value %f, got %f", tt.expectedValue, value)
			}
		})
	}
}

func TestRSISeries(t *testing.T) {
	closes := []float64{100.0, 102.0, 101.0, 103.0, 102.0, 104.0}

	series := RSISeries(closes, 3)
	expected := []float64{80.0, 50.0, 80.0}
	if len(series) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(series))
	}
	for i := range expected {
		if series[i]-expected[i] > 0.0001 || series[i]-expected[i] < -0.0001 {
			t.Errorf("series[%d]: expected %f, got %f", i, expected[i], series[i])
		}
	}

	if got := RSISeries(closes[:3], 3); got != nil {
		t.Errorf("Expected nil series for short input, got %v", got)
	}
}

func TestRSISeries_StrictlyIncreasing(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*1.5
	}
	for i, v := range RSISeries(closes, 14) {
		if v != 100.0 {
			t.Fatalf("series[%d] = %f, want exactly 100", i, v)
		}
	}
}

func TestRSI_IsOverboughtOversold(t *testing.T) {
	config := RSIConfig{
		IndicatorConfig: IndicatorConfig{Period: 14},
		Overbought:      80,
		Oversold:        20,
	}

	tests := []struct {
		name         string
		value        float64
		isOverbought bool
		isOversold   bool
	}{
		{name: "Overbought condition", value: 85.0, isOverbought: true},
		{name: "Oversold condition", value: 15.0, isOversold: true},
		{name: "Neutral condition", value: 50.0},
		{name: "Exact overbought threshold", value: 80.0, isOverbought: true},
		{name: "Exact oversold threshold", value: 20.0, isOversold: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(config)
			if overbought := rsi.IsOverbought(tt.value); overbought != tt.isOverbought {
				t.Errorf("IsOverbought(%f) = %v, want %v", tt.value, overbought, tt.isOverbought)
			}
			if oversold := rsi.IsOversold(tt.value); oversold != tt.isOversold {
				t.Errorf("IsOversold(%f) = %v, want %v", tt.value, oversold, tt.isOversold)
			}
		})
	}
}

func TestRSI_Name(t *testing.T) {
	rsi := NewRSI(RSIConfig{})
	if name := rsi.Name(); name != "RSI" {
		t.Errorf("Expected name 'RSI', got '%s'", name)
	}
}
