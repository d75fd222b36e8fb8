// Package strategy implements the RSI follow-trend setup: for one (symbol, timeframe)
// instance it derives RSI, EMA(RSI) and WMA(RSI) from each batch of klines and walks
// independent BUY and SELL setups that emit #1 and #2 signals.
//
// A FollowTrend is not safe for concurrent use. Callers invoke Update and then
// EvaluateSignals exactly once per batch; the registry serialises access per instance.
package strategy

import (
	"context"
	"fmt"
	"time"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"
	"rsiTrendBot/internal/strategy/indicators"
)

// extraBars is added to the largest period to get the minimum batch length.
const extraBars = 10

// Config holds parameters for the follow-trend strategy.
type Config struct {
	RSIPeriod  int     // e.g., 14
	EMAPeriod  int     // e.g., 9, applied to the RSI series
	WMAPeriod  int     // e.g., 45, applied to the RSI series
	Overbought float64 // e.g., 80.0
	Oversold   float64 // e.g., 20.0
}

// DefaultConfig returns the standard 14/9/45 setup with 80/20 thresholds.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:  14,
		EMAPeriod:  9,
		WMAPeriod:  45,
		Overbought: 80.0,
		Oversold:   20.0,
	}
}

// Validate checks that periods are positive and thresholds are ordered within 0-100.
func (c Config) Validate() error {
	if c.RSIPeriod <= 0 || c.EMAPeriod <= 0 || c.WMAPeriod <= 0 {
		return fmt.Errorf("strategy periods must be positive")
	}
	if c.Overbought <= c.Oversold || c.Overbought > 100 || c.Oversold < 0 {
		return fmt.Errorf("invalid RSI thresholds (overbought must be > oversold, between 0-100)")
	}
	return nil
}

// RequiredDataPoints returns the minimum number of klines an update needs.
func (c Config) RequiredDataPoints() int {
	return max(c.RSIPeriod, c.EMAPeriod, c.WMAPeriod) + extraBars
}

// Signals is the result of evaluating one update.
type Signals struct {
	Buy1  bool
	Buy2  bool
	Sell1 bool
	Sell2 bool
}

// Any reports whether at least one signal is set.
func (s Signals) Any() bool {
	return s.Buy1 || s.Buy2 || s.Sell1 || s.Sell2
}

// Has reports whether the given signal type is set.
func (s Signals) Has(t domain.SignalType) bool {
	switch t {
	case domain.SignalBuy1:
		return s.Buy1
	case domain.SignalBuy2:
		return s.Buy2
	case domain.SignalSell1:
		return s.Sell1
	case domain.SignalSell2:
		return s.Sell2
	default:
		return false
	}
}

// Types returns the set signals in reporting order.
func (s Signals) Types() []domain.SignalType {
	var types []domain.SignalType
	for _, t := range domain.AllSignalTypes {
		if s.Has(t) {
			types = append(types, t)
		}
	}
	return types
}

// Status is a read-only snapshot of an instance.
type Status struct {
	Values      domain.IndicatorValues // NeutralRSI for all three before the first update
	Buy         SetupState
	Sell        SetupState
	Initialized bool      // At least one successful update
	LastClose   float64   // Close of the last bar of the latest successful update
	LastBarTime time.Time // Close time of that bar
}

// FollowTrend holds the indicator and setup state of one instance.
type FollowTrend struct {
	key    domain.InstanceKey
	cfg    Config
	logger ports.Logger

	rsi *indicators.RSI
	ema *indicators.MovingAverage
	wma *indicators.MovingAverage

	current     domain.IndicatorValues
	previous    domain.IndicatorValues
	hasCurrent  bool
	hasPrevious bool
	lastBar     domain.Kline

	buy  *setup
	sell *setup

	stats domain.Statistics

	// pending holds the #2 signals decided by the latest update.
	pending   Signals
	evaluated bool
}

// New creates a FollowTrend instance for key.
func New(key domain.InstanceKey, cfg Config, logger ports.Logger) (*FollowTrend, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ema, err := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.EMAPeriod},
		Type:            indicators.ExponentialMovingAverage,
	})
	if err != nil {
		return nil, err
	}
	wma, err := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.WMAPeriod},
		Type:            indicators.WeightedMovingAverage,
	})
	if err != nil {
		return nil, err
	}
	rsi := indicators.NewRSI(indicators.RSIConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
		Overbought:      cfg.Overbought,
		Oversold:        cfg.Oversold,
	})

	return &FollowTrend{
		key:    key,
		cfg:    cfg,
		logger: logger,
		rsi:    rsi,
		ema:    ema,
		wma:    wma,
		buy:    newSetup(buyRules(rsi)),
		sell:   newSetup(sellRules(rsi)),
	}, nil
}

// Key returns the instance key.
func (f *FollowTrend) Key() domain.InstanceKey {
	return f.key
}

// Config returns the strategy parameters.
func (f *FollowTrend) Config() Config {
	return f.cfg
}

// Update recomputes the RSI series over the whole batch, derives EMA and WMA from it and
// advances both setups. It returns false and leaves all state untouched when the batch
// is shorter than RequiredDataPoints.
func (f *FollowTrend) Update(ctx context.Context, klines []*domain.Kline) bool {
	required := f.cfg.RequiredDataPoints()
	if len(klines) < required {
		f.logger.Warn(ctx, "Not enough data to calculate indicators", map[string]interface{}{
			"instance":  f.key.String(),
			"available": len(klines),
			"required":  required,
		})
		return false
	}

	series := f.rsi.Series(domain.Closes(klines))
	values := domain.IndicatorValues{
		RSI: series[len(series)-1],
		EMA: f.ema.Calculate(series),
		WMA: f.wma.Calculate(series),
	}
	f.lastBar = *klines[len(klines)-1]

	buyBefore, sellBefore := f.buy.state, f.sell.state
	f.apply(values)

	fields := map[string]interface{}{
		"instance": f.key.String(),
		"rsi":      values.RSI,
		"ema":      values.EMA,
		"wma":      values.WMA,
	}
	f.logger.Debug(ctx, "Indicators updated", fields)
	if f.buy.state != buyBefore {
		f.logSetupChange(ctx, domain.Buy, buyBefore, f.buy.state)
	}
	if f.sell.state != sellBefore {
		f.logSetupChange(ctx, domain.Sell, sellBefore, f.sell.state)
	}
	return true
}

// apply shifts current values to previous and advances the setups with the new values.
func (f *FollowTrend) apply(values domain.IndicatorValues) {
	f.previous, f.hasPrevious = f.current, f.hasCurrent
	f.current, f.hasCurrent = values, true
	f.pending = Signals{}
	f.evaluated = false

	// The first update has nothing to cross from.
	if !f.hasPrevious {
		return
	}

	if f.buy.advance(f.previous, f.current) {
		f.stats.TotalBuy2++
		f.pending.Buy2 = true
	}
	if f.sell.advance(f.previous, f.current) {
		f.stats.TotalSell2++
		f.pending.Sell2 = true
	}
}

// EvaluateSignals returns the signals of the latest update.
//
// It is not a pure query: a #1 signal increments the cycle's entry count and the
// statistics when it is returned. Only the first call after an update reports signals;
// later calls return no signals until the next successful Update.
func (f *FollowTrend) EvaluateSignals() Signals {
	if f.evaluated || !f.hasPrevious {
		return Signals{}
	}
	f.evaluated = true

	signals := f.pending
	if f.buy.takeEntry1() {
		signals.Buy1 = true
		f.stats.TotalBuy1++
	}
	if f.sell.takeEntry1() {
		signals.Sell1 = true
		f.stats.TotalSell1++
	}
	return signals
}

// Values returns the current indicator values, NeutralRSI before the first update.
func (f *FollowTrend) Values() domain.IndicatorValues {
	if !f.hasCurrent {
		return domain.IndicatorValues{RSI: indicators.NeutralRSI, EMA: indicators.NeutralRSI, WMA: indicators.NeutralRSI}
	}
	return f.current
}

// Status returns a snapshot of the indicator values and both setups.
func (f *FollowTrend) Status() Status {
	return Status{
		Values:      f.Values(),
		Buy:         f.buy.state,
		Sell:        f.sell.state,
		Initialized: f.hasCurrent,
		LastClose:   f.lastBar.Close,
		LastBarTime: f.lastBar.CloseTime,
	}
}

// Statistics returns the cumulative signal totals.
func (f *FollowTrend) Statistics() domain.Statistics {
	return f.stats
}

// RestoreStatistics seeds the totals from a persisted snapshot. Counters never go
// down: each total becomes the larger of the current and the restored value.
func (f *FollowTrend) RestoreStatistics(stats domain.Statistics) {
	f.stats.TotalBuy1 = max(f.stats.TotalBuy1, stats.TotalBuy1)
	f.stats.TotalBuy2 = max(f.stats.TotalBuy2, stats.TotalBuy2)
	f.stats.TotalSell1 = max(f.stats.TotalSell1, stats.TotalSell1)
	f.stats.TotalSell2 = max(f.stats.TotalSell2, stats.TotalSell2)
}

func (f *FollowTrend) logSetupChange(ctx context.Context, dir domain.Direction, before, after SetupState) {
	fields := map[string]interface{}{
		"instance":    f.key.String(),
		"direction":   string(dir),
		"step1":       after.Step1,
		"step2":       after.Step2,
		"step3":       after.Step3,
		"step4":       after.Step4,
		"crossCount":  after.CrossCount,
		"entry1Count": after.Entry1Count,
	}
	switch {
	case after.IsInitial():
		f.logger.Info(ctx, "Setup cycle reset", fields)
	case after.Ready() && !before.Ready():
		f.logger.Info(ctx, "Setup ready", fields)
	default:
		f.logger.Debug(ctx, "Setup progressed", fields)
	}
}
