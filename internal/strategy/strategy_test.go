package strategy

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

var testKey = domain.InstanceKey{Symbol: "BTCUSD", Timeframe: "15m"}

func newTestStrategy(t *testing.T) (*FollowTrend, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	f, err := New(testKey, DefaultConfig(), logger)
	require.NoError(t, err)
	return f, logger
}

func makeKlines(closes []float64) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	klines := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		open := start.Add(time.Duration(i) * 15 * time.Minute)
		klines[i] = &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(15*time.Minute - time.Millisecond),
			Symbol:    testKey.Symbol,
			Interval:  testKey.Timeframe,
			Close:     c,
			IsFinal:   true,
		}
	}
	return klines
}

func v(rsi, ema, wma float64) domain.IndicatorValues {
	return domain.IndicatorValues{RSI: rsi, EMA: ema, WMA: wma}
}

// mirror reflects values around 50 so a BUY sequence drives the SELL setup.
func mirror(values domain.IndicatorValues) domain.IndicatorValues {
	return v(100-values.RSI, 100-values.EMA, 100-values.WMA)
}

// buySetupSequence walks the BUY setup to ready: touch 80, RSI under EMA,
// RSI under WMA, EMA under WMA.
var buySetupSequence = []domain.IndicatorValues{
	v(50, 50, 50),
	v(85, 70, 60),
	v(65, 70, 60),
	v(55, 66, 60),
	v(50, 58, 59),
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		logger  ports.Logger
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultConfig(), logger: &mockLogger{}},
		{name: "nil logger", cfg: DefaultConfig(), logger: nil, wantErr: true},
		{
			name:    "invalid periods",
			cfg:     Config{RSIPeriod: 0, EMAPeriod: 9, WMAPeriod: 45, Overbought: 80, Oversold: 20},
			logger:  &mockLogger{},
			wantErr: true,
		},
		{
			name:    "inverted thresholds",
			cfg:     Config{RSIPeriod: 14, EMAPeriod: 9, WMAPeriod: 45, Overbought: 20, Oversold: 80},
			logger:  &mockLogger{},
			wantErr: true,
		},
		{
			name:    "threshold above 100",
			cfg:     Config{RSIPeriod: 14, EMAPeriod: 9, WMAPeriod: 45, Overbought: 101, Oversold: 20},
			logger:  &mockLogger{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(testKey, tt.cfg, tt.logger)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testKey, f.Key())
		})
	}
}

func TestConfig_RequiredDataPoints(t *testing.T) {
	assert.Equal(t, 55, DefaultConfig().RequiredDataPoints())
	assert.Equal(t, 40, Config{RSIPeriod: 30, EMAPeriod: 9, WMAPeriod: 20}.RequiredDataPoints())
}

func TestUpdate_InsufficientData(t *testing.T) {
	f, logger := newTestStrategy(t)

	closes := make([]float64, 54)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	assert.False(t, f.Update(context.Background(), makeKlines(closes)))
	assert.Len(t, logger.warnMsgs, 1)

	status := f.Status()
	assert.False(t, status.Initialized)
	assert.Equal(t, v(50, 50, 50), status.Values)
	assert.True(t, status.Buy.IsInitial())
	assert.True(t, status.Sell.IsInitial())
	assert.Equal(t, Signals{}, f.EvaluateSignals())
}

func TestUpdate_StrictlyIncreasingPrices(t *testing.T) {
	f, _ := newTestStrategy(t)
	ctx := context.Background()

	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i)*2
	}
	klines := makeKlines(closes)

	require.True(t, f.Update(ctx, klines))
	status := f.Status()
	assert.True(t, status.Initialized)
	assert.Equal(t, 100.0, status.Values.RSI)
	assert.InDelta(t, 100.0, status.Values.EMA, 1e-9)
	assert.InDelta(t, 100.0, status.Values.WMA, 1e-9)
	assert.Equal(t, klines[len(klines)-1].Close, status.LastClose)
	assert.Equal(t, klines[len(klines)-1].CloseTime, status.LastBarTime)
	// The first update has no previous values, so the setups do not move.
	assert.False(t, status.Buy.Step1)
	assert.Equal(t, Signals{}, f.EvaluateSignals())

	require.True(t, f.Update(ctx, klines[1:]))
	status = f.Status()
	assert.True(t, status.Buy.Step1)
	assert.False(t, status.Buy.Step2)
	assert.True(t, status.Sell.IsInitial())
}

func TestBuyCycle_EndToEnd(t *testing.T) {
	f, _ := newTestStrategy(t)

	for i, values := range buySetupSequence {
		f.apply(values)
		assert.Equal(t, Signals{}, f.EvaluateSignals(), "setup update %d", i)
	}
	status := f.Status()
	assert.Equal(t, SetupState{Step1: true, Step2: true, Step3: true, Step4: true}, status.Buy)
	assert.True(t, status.Buy.Ready())

	steps := []struct {
		name       string
		values     domain.IndicatorValues
		want       Signals
		crossCount int
		entry1     int
	}{
		{name: "first cross up through EMA", values: v(57, 56, 59), crossCount: 1},
		{name: "dip back under EMA", values: v(52, 55, 58), crossCount: 1},
		{name: "second cross up through EMA", values: v(56, 54, 58), want: Signals{Buy1: true}, crossCount: 2, entry1: 1},
		{name: "cross up through WMA", values: v(62, 57, 58), want: Signals{Buy2: true}},
	}

	for _, step := range steps {
		f.apply(step.values)
		assert.Equal(t, step.want, f.EvaluateSignals(), step.name)
		status := f.Status()
		assert.Equal(t, step.crossCount, status.Buy.CrossCount, step.name)
		assert.Equal(t, step.entry1, status.Buy.Entry1Count, step.name)
	}

	status = f.Status()
	assert.True(t, status.Buy.IsInitial())
	assert.True(t, status.Sell.IsInitial())
	assert.Equal(t, domain.Statistics{TotalBuy1: 1, TotalBuy2: 1}, f.Statistics())
}

func TestSellCycle_MirrorsBuy(t *testing.T) {
	f, _ := newTestStrategy(t)

	for _, values := range buySetupSequence {
		f.apply(mirror(values))
		assert.Equal(t, Signals{}, f.EvaluateSignals())
	}
	require.True(t, f.Status().Sell.Ready())
	assert.True(t, f.Status().Buy.IsInitial())

	f.apply(mirror(v(57, 56, 59)))
	assert.Equal(t, Signals{}, f.EvaluateSignals())
	f.apply(mirror(v(52, 55, 58)))
	assert.Equal(t, Signals{}, f.EvaluateSignals())
	f.apply(mirror(v(56, 54, 58)))
	assert.Equal(t, Signals{Sell1: true}, f.EvaluateSignals())
	assert.Equal(t, 1, f.Status().Sell.Entry1Count)
	f.apply(mirror(v(62, 57, 58)))
	assert.Equal(t, Signals{Sell2: true}, f.EvaluateSignals())

	assert.True(t, f.Status().Sell.IsInitial())
	assert.Equal(t, domain.Statistics{TotalSell1: 1, TotalSell2: 1}, f.Statistics())
}

func TestEntry1_CappedPerCycle(t *testing.T) {
	f, _ := newTestStrategy(t)
	for _, values := range buySetupSequence {
		f.apply(values)
		f.EvaluateSignals()
	}

	up, down := v(56, 55, 70), v(54, 55, 70)
	var fired []bool
	for i := 0; i < 4; i++ {
		f.apply(up)
		fired = append(fired, f.EvaluateSignals().Buy1)
		f.apply(down)
		assert.False(t, f.EvaluateSignals().Buy1)
	}

	assert.Equal(t, []bool{false, true, true, false}, fired)
	status := f.Status()
	assert.Equal(t, 4, status.Buy.CrossCount)
	assert.Equal(t, 2, status.Buy.Entry1Count)
	assert.Equal(t, 2, f.Statistics().TotalBuy1)
}

func TestBuy2_SuppressesBuy1OnSameUpdate(t *testing.T) {
	f, _ := newTestStrategy(t)
	for _, values := range buySetupSequence {
		f.apply(values)
		f.EvaluateSignals()
	}
	f.apply(v(57, 56, 59))
	f.EvaluateSignals()
	f.apply(v(52, 55, 58))
	f.EvaluateSignals()

	// Crosses EMA for the second time and WMA in the same update.
	f.apply(v(70, 56, 58))
	assert.Equal(t, Signals{Buy2: true}, f.EvaluateSignals())
	assert.True(t, f.Status().Buy.IsInitial())
	assert.Equal(t, domain.Statistics{TotalBuy2: 1}, f.Statistics())
}

func TestOversoldInvalidatesBuySetup(t *testing.T) {
	f, _ := newTestStrategy(t)
	for _, values := range buySetupSequence {
		f.apply(values)
		f.EvaluateSignals()
	}
	require.True(t, f.Status().Buy.Ready())

	f.apply(v(15, 40, 50))
	assert.Equal(t, Signals{}, f.EvaluateSignals())

	status := f.Status()
	assert.True(t, status.Buy.IsInitial())
	assert.True(t, status.Sell.Step1)
	assert.Equal(t, domain.Statistics{}, f.Statistics())
}

func TestOverboughtInvalidatesSellSetup(t *testing.T) {
	f, _ := newTestStrategy(t)
	f.apply(v(50, 50, 50))
	f.apply(v(15, 30, 40))
	f.apply(v(35, 30, 40))
	require.True(t, f.Status().Sell.Step2)

	f.apply(v(85, 60, 50))
	status := f.Status()
	assert.True(t, status.Sell.IsInitial())
	assert.True(t, status.Buy.Step1)
}

func TestEvaluateSignals_OncePerUpdate(t *testing.T) {
	f, _ := newTestStrategy(t)
	for _, values := range buySetupSequence {
		f.apply(values)
		f.EvaluateSignals()
	}
	f.apply(v(57, 56, 59))
	f.EvaluateSignals()
	f.apply(v(52, 55, 58))
	f.EvaluateSignals()
	f.apply(v(56, 54, 58))

	assert.Equal(t, Signals{Buy1: true}, f.EvaluateSignals())
	assert.Equal(t, Signals{}, f.EvaluateSignals())
	assert.Equal(t, 1, f.Status().Buy.Entry1Count)
	assert.Equal(t, 1, f.Statistics().TotalBuy1)
}

func TestSnapshots_AreIdempotent(t *testing.T) {
	f, _ := newTestStrategy(t)
	for _, values := range buySetupSequence {
		f.apply(values)
		f.EvaluateSignals()
	}
	assert.Equal(t, f.Status(), f.Status())
	assert.Equal(t, f.Statistics(), f.Statistics())
	assert.Equal(t, f.Values(), f.Values())
}

func TestRandomWalk_StateProperties(t *testing.T) {
	f, _ := newTestStrategy(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	closes := make([]float64, 3000)
	price := 100.0
	for i := range closes {
		// Trending phases make the RSI reach both extremes.
		drift := 0.4
		if (i/150)%2 == 1 {
			drift = -0.4
		}
		price += drift + rng.NormFloat64()
		closes[i] = price
	}
	klines := makeKlines(closes)

	checkOrdering := func(s SetupState) {
		if s.Step2 {
			require.True(t, s.Step1)
		}
		if s.Step3 {
			require.True(t, s.Step2)
		}
		if s.Step4 {
			require.True(t, s.Step3)
		}
		require.LessOrEqual(t, s.Entry1Count, 2)
		if !s.Ready() {
			require.Zero(t, s.CrossCount)
			require.Zero(t, s.Entry1Count)
		}
	}

	var prevStats domain.Statistics
	const window = 100
	for end := window; end <= len(klines); end++ {
		require.True(t, f.Update(ctx, klines[end-window:end]))
		signals := f.EvaluateSignals()
		status := f.Status()
		stats := f.Statistics()

		checkOrdering(status.Buy)
		checkOrdering(status.Sell)
		if signals.Buy2 {
			require.True(t, status.Buy.IsInitial())
		}
		if signals.Sell2 {
			require.True(t, status.Sell.IsInitial())
		}
		if f.Values().RSI >= 80 {
			require.True(t, status.Sell.IsInitial())
		}
		if f.Values().RSI <= 20 {
			require.True(t, status.Buy.IsInitial())
		}
		require.GreaterOrEqual(t, stats.TotalBuy1, prevStats.TotalBuy1)
		require.GreaterOrEqual(t, stats.TotalBuy2, prevStats.TotalBuy2)
		require.GreaterOrEqual(t, stats.TotalSell1, prevStats.TotalSell1)
		require.GreaterOrEqual(t, stats.TotalSell2, prevStats.TotalSell2)
		prevStats = stats
	}
}

func TestSignals_Types(t *testing.T) {
	s := Signals{Buy2: true, Sell1: true}
	assert.True(t, s.Any())
	assert.Equal(t, []domain.SignalType{domain.SignalBuy2, domain.SignalSell1}, s.Types())
	assert.False(t, Signals{}.Any())
	assert.Empty(t, Signals{}.Types())
}

func TestRestoreStatistics_NeverDecreases(t *testing.T) {
	f, err := New(domain.InstanceKey{Symbol: "BTCUSD", Timeframe: "1h"}, DefaultConfig(), &mockLogger{})
	require.NoError(t, err)

	f.RestoreStatistics(domain.Statistics{TotalBuy1: 4, TotalSell1: 2})
	assert.Equal(t, domain.Statistics{TotalBuy1: 4, TotalSell1: 2}, f.Statistics())

	f.RestoreStatistics(domain.Statistics{TotalBuy1: 1, TotalBuy2: 5})
	assert.Equal(t, domain.Statistics{TotalBuy1: 4, TotalBuy2: 5, TotalSell1: 2}, f.Statistics())
}
