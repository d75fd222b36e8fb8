// Package indicators implements the numeric series used by the RSI follow-trend setup:
// a simple-average RSI, and EMA/WMA smoothing applied to the RSI series.
//
// All functions are pure and operate on plain float64 slices. Short inputs fall back to
// defined neutral values instead of returning errors.
package indicators

// NeutralRSI is returned when there is not enough data to compute an RSI value.
const NeutralRSI = 50.0

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// mean returns the arithmetic mean of values, or 0 for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
