package indicators

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{config: config}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// Period returns the configured lookback.
func (r *RSI) Period() int {
	return r.config.Period
}

// Calculate computes the RSI value for the last point of closes.
func (r *RSI) Calculate(closes []float64) float64 {
	return ComputeRSI(closes, r.config.Period)
}

// Series computes one RSI value per eligible prefix of closes.
func (r *RSI) Series(closes []float64) []float64 {
	return RSISeries(closes, r.config.Period)
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}

// ComputeRSI calculates RSI from the simple mean of the last period gains and losses.
//
// This is not Wilder's smoothed RSI: each call only looks at the last period price
// changes. Fewer than period+1 closes yield NeutralRSI, and a window without losses
// yields exactly 100.
func ComputeRSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// RSISeries computes ComputeRSI(closes[:i+1], period) for i = period .. len(closes)-1.
// Every element is recomputed from its own window; nothing is carried between points.
func RSISeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	series := make([]float64, 0, len(closes)-period)
	for i := period; i < len(closes); i++ {
		series = append(series, ComputeRSI(closes[:i+1], period))
	}
	return series
}
