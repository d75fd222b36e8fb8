package indicators

import "fmt"

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
	// WeightedMovingAverage represents a linearly weighted moving average
	WeightedMovingAverage MovingAverageType = "WMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both EMA and WMA over an arbitrary value series.
type MovingAverage struct {
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) (*MovingAverage, error) {
	switch config.Type {
	case ExponentialMovingAverage, WeightedMovingAverage:
	default:
		return nil, fmt.Errorf("unsupported moving average type: %s", config.Type)
	}
	if config.Period <= 0 {
		return nil, fmt.Errorf("moving average period must be positive, got %d", config.Period)
	}
	return &MovingAverage{config: config}, nil
}

// Name returns the name of the indicator, e.g. "EMA9".
func (m *MovingAverage) Name() string {
	return fmt.Sprintf("%s%d", m.config.Type, m.config.Period)
}

// Period returns the configured lookback.
func (m *MovingAverage) Period() int {
	return m.config.Period
}

// Calculate computes the moving average of values based on the configured type.
func (m *MovingAverage) Calculate(values []float64) float64 {
	if m.config.Type == WeightedMovingAverage {
		return ComputeWMA(values, m.config.Period)
	}
	return ComputeEMA(values, m.config.Period)
}

// ComputeEMA computes the Exponential Moving Average over all of values.
//
// The recurrence is seeded with values[0] rather than an initial SMA. With fewer than
// period values the arithmetic mean is returned instead.
func ComputeEMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period || len(values) == 0 {
		return mean(values)
	}

	multiplier := 2.0 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*multiplier + ema*(1-multiplier)
	}
	return ema
}

// ComputeWMA computes the Weighted Moving Average of the last period values with
// weights 1..period, the most recent value weighted highest. With fewer than period
// values the arithmetic mean is returned instead.
func ComputeWMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return mean(values)
	}

	window := values[len(values)-period:]
	var weighted, weights float64
	for i, v := range window {
		w := float64(i + 1)
		weighted += v * w
		weights += w
	}
	return weighted / weights
}
