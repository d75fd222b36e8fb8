package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"rsiTrendBot/config"
	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"
	"rsiTrendBot/internal/registry"
	"rsiTrendBot/internal/strategy"
)

// Recorder receives the service's metrics.
type Recorder interface {
	RecordSignal(symbol, timeframe, signalType string)
	RecordIndicators(symbol, timeframe string, rsi, ema, wma float64)
	RecordFetchError(source string)
	RecordSkippedUpdate(symbol, timeframe string)
	RecordNotifyError()
	ObserveCheck(d time.Duration)
}

// HealthReporter is told about the outcome of every check.
type HealthReporter interface {
	MarkCheck(err error)
}

// StatusReport is the status of one instance together with a live price.
type StatusReport struct {
	Key         domain.InstanceKey
	Price       float64
	PriceLive   bool // False when the source failed and Price is the last close
	Status      strategy.Status
	Config      strategy.Config
	LastSignal  *domain.SignalEvent // Most recent stored signal, nil if none
	GeneratedAt time.Time
}

// KeyStatistics pairs an instance with its signal totals.
type KeyStatistics struct {
	Key   domain.InstanceKey
	Stats domain.Statistics
}

// SignalService polls market data for every instance, runs the strategy and
// dispatches new signals.
type SignalService struct {
	cfg      *config.Config
	logger   ports.Logger
	registry *registry.Registry
	sources  map[string]ports.KlineSource
	routes   map[string]config.SymbolRoute
	repo     ports.SignalRepository
	notifier ports.Notifier
	metrics  Recorder
	health   HealthReporter
	newID    func() string
	now      func() time.Time

	// State fields
	mu          sync.Mutex // Protects lastSignals
	lastSignals map[domain.InstanceKey]strategy.Signals
}

// NewSignalService creates a new application service instance.
// health may be nil.
func NewSignalService(
	cfg *config.Config,
	logger ports.Logger,
	reg *registry.Registry,
	sources []ports.KlineSource,
	repo ports.SignalRepository,
	notifier ports.Notifier,
	metrics Recorder,
	health HealthReporter,
) (*SignalService, error) {

	if cfg == nil || logger == nil || reg == nil || repo == nil || notifier == nil || metrics == nil {
		return nil, fmt.Errorf("missing required dependencies for SignalService")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("configuration CheckInterval must be positive")
	}
	if cfg.KlineLimit <= 0 {
		return nil, fmt.Errorf("configuration KlineLimit must be positive")
	}

	bySource := make(map[string]ports.KlineSource, len(sources))
	for _, src := range sources {
		if src != nil {
			bySource[src.Name()] = src
		}
	}

	routes := make(map[string]config.SymbolRoute, len(cfg.Symbols))
	for _, r := range cfg.Symbols {
		if _, ok := bySource[r.Source]; !ok {
			return nil, fmt.Errorf("symbol %s is routed to source %q which is not configured", r.Symbol, r.Source)
		}
		routes[r.Symbol] = r
	}
	for _, key := range reg.Keys() {
		if _, ok := routes[key.Symbol]; !ok {
			return nil, fmt.Errorf("no route for instance %s", key)
		}
	}

	return &SignalService{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		sources:     bySource,
		routes:      routes,
		repo:        repo,
		notifier:    notifier,
		metrics:     metrics,
		health:      health,
		newID:       uuid.NewString,
		now:         time.Now,
		lastSignals: make(map[domain.InstanceKey]strategy.Signals),
	}, nil
}

// Keys returns the monitored instances in configuration order.
func (s *SignalService) Keys() []domain.InstanceKey {
	return s.registry.Keys()
}

// RestoreStatistics seeds every instance's totals from the repository. Instances
// without a stored snapshot keep zero totals. Load failures are logged and joined.
func (s *SignalService) RestoreStatistics(ctx context.Context) error {
	var errs []error
	restored := 0
	for _, key := range s.registry.Keys() {
		stats, err := s.repo.LoadStatistics(ctx, key)
		if errors.Is(err, ports.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn(ctx, "Failed to load statistics", map[string]interface{}{"instance": key.String(), "error": err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		_ = s.registry.With(key, func(f *strategy.FollowTrend) error {
			f.RestoreStatistics(stats)
			return nil
		})
		restored++
	}
	s.logger.Info(ctx, "Statistics restored", map[string]interface{}{"instances": restored})
	return errors.Join(errs...)
}

// Start runs the polling loop until ctx is canceled or SIGINT/SIGTERM is received.
// The first check runs after the configured initial delay.
func (s *SignalService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Signal Service...", map[string]interface{}{
		"instances":     len(s.registry.Keys()),
		"checkInterval": s.cfg.CheckInterval.String(),
		"initialDelay":  s.cfg.InitialDelay.String(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// Start with zero totals for instances whose snapshot could not be read.
	_ = s.RestoreStatistics(ctx)

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Signal Service stopped before the first check.")
		return nil
	case <-time.After(s.cfg.InitialDelay):
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		// Errors are per instance and already logged; the loop keeps going.
		_ = s.CheckAll(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Signal Service stopped.")
			return nil
		case <-ticker.C:
		}
	}
}

// CheckAll processes every instance concurrently. A failure on one instance does not
// affect the others; all failures are returned joined.
func (s *SignalService) CheckAll(ctx context.Context) error {
	start := s.now()
	keys := s.registry.Keys()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		errs   []error
		events int
	)
	for _, key := range keys {
		wg.Add(1)
		go func(key domain.InstanceKey) {
			defer wg.Done()
			emitted, err := s.ProcessKey(ctx, key)
			errMu.Lock()
			defer errMu.Unlock()
			events += len(emitted)
			if err != nil {
				errs = append(errs, err)
			}
		}(key)
	}
	wg.Wait()

	err := errors.Join(errs...)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveCheck(elapsed)
	if s.health != nil {
		s.health.MarkCheck(err)
	}
	s.logger.Debug(ctx, "Check completed", map[string]interface{}{
		"instances": len(keys),
		"failed":    len(errs),
		"signals":   events,
		"duration":  elapsed.String(),
	})
	return err
}

// ProcessKey fetches the latest klines for one instance, updates its strategy and
// dispatches the signals that were not already active on the previous update.
func (s *SignalService) ProcessKey(ctx context.Context, key domain.InstanceKey) ([]*domain.SignalEvent, error) {
	route, ok := s.routes[key.Symbol]
	if !ok || !s.registry.Has(key) {
		return nil, fmt.Errorf("instance %s: %w", key, ports.ErrNotFound)
	}
	source := s.sources[route.Source]

	klines, err := source.GetKlines(ctx, route.SourceSymbol, key.Timeframe, s.cfg.KlineLimit)
	if err != nil {
		s.metrics.RecordFetchError(source.Name())
		s.logger.Error(ctx, err, "Failed to fetch klines", map[string]interface{}{"instance": key.String(), "source": source.Name()})
		return nil, fmt.Errorf("fetching klines for %s: %w", key, err)
	}
	if len(klines) == 0 {
		s.logger.Debug(ctx, "No klines returned", map[string]interface{}{"instance": key.String()})
		return nil, nil
	}

	var (
		updated bool
		signals strategy.Signals
		status  strategy.Status
		stats   domain.Statistics
	)
	err = s.registry.With(key, func(st *strategy.FollowTrend) error {
		updated = st.Update(ctx, klines)
		if !updated {
			return nil
		}
		signals = st.EvaluateSignals()
		status = st.Status()
		stats = st.Statistics()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		s.metrics.RecordSkippedUpdate(key.Symbol, key.Timeframe)
		return nil, nil
	}
	s.metrics.RecordIndicators(key.Symbol, key.Timeframe, status.Values.RSI, status.Values.EMA, status.Values.WMA)

	fresh := s.freshSignals(key, signals)
	if len(fresh) == 0 {
		return nil, nil
	}

	last := klines[len(klines)-1]
	events := make([]*domain.SignalEvent, 0, len(fresh))
	for _, t := range fresh {
		ev := &domain.SignalEvent{
			ID:         s.newID(),
			Key:        key,
			Type:       t,
			Price:      last.Close,
			Time:       last.CloseTime,
			Indicators: status.Values,
		}
		s.dispatch(ctx, ev)
		events = append(events, ev)
	}

	if err := s.repo.SaveStatistics(ctx, key, stats); err != nil {
		s.logger.Error(ctx, err, "Failed to save statistics", map[string]interface{}{"instance": key.String()})
	}
	return events, nil
}

// freshSignals returns the signal types that are set now but were not set on the
// previous successful update of key, and remembers the current set.
func (s *SignalService) freshSignals(key domain.InstanceKey, current strategy.Signals) []domain.SignalType {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.lastSignals[key]
	s.lastSignals[key] = current

	var fresh []domain.SignalType
	for _, t := range current.Types() {
		if !previous.Has(t) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// dispatch persists, counts and announces a signal. Failures are logged and do not
// stop the remaining steps.
func (s *SignalService) dispatch(ctx context.Context, ev *domain.SignalEvent) {
	fields := map[string]interface{}{
		"signalID": ev.ID,
		"instance": ev.Key.String(),
		"type":     string(ev.Type),
		"price":    ev.Price,
		"rsi":      ev.Indicators.RSI,
	}
	s.logger.Info(ctx, "Signal detected", fields)

	if err := s.repo.SaveSignal(ctx, ev); err != nil {
		s.logger.Error(ctx, err, "Failed to save signal", fields)
	}
	s.metrics.RecordSignal(ev.Key.Symbol, ev.Key.Timeframe, string(ev.Type))
	if err := s.notifier.NotifySignal(ctx, ev); err != nil {
		s.metrics.RecordNotifyError()
		s.logger.Error(ctx, err, "Failed to notify signal", fields)
	}
}

// StatusReport returns the status of one instance with the current price from its source.
// When the price request fails the last close is reported instead.
func (s *SignalService) StatusReport(ctx context.Context, key domain.InstanceKey) (*StatusReport, error) {
	var (
		status strategy.Status
		cfg    strategy.Config
	)
	err := s.registry.With(key, func(st *strategy.FollowTrend) error {
		status = st.Status()
		cfg = st.Config()
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Key:         key,
		Price:       status.LastClose,
		Status:      status,
		Config:      cfg,
		GeneratedAt: s.now(),
	}

	route := s.routes[key.Symbol]
	source := s.sources[route.Source]
	price, err := source.GetPrice(ctx, route.SourceSymbol)
	if err != nil {
		s.metrics.RecordFetchError(source.Name())
		s.logger.Warn(ctx, "Falling back to last close for status", map[string]interface{}{"instance": key.String(), "error": err.Error()})
	} else {
		report.Price = price
		report.PriceLive = true
	}

	recent, err := s.repo.RecentSignals(ctx, key, 1)
	if err != nil {
		s.logger.Warn(ctx, "Failed to load last signal", map[string]interface{}{"instance": key.String(), "error": err.Error()})
	} else if len(recent) > 0 {
		report.LastSignal = recent[0]
	}
	return report, nil
}

// StatsReport returns the signal totals of every instance in configuration order.
func (s *SignalService) StatsReport() []KeyStatistics {
	keys := s.registry.Keys()
	out := make([]KeyStatistics, 0, len(keys))
	for _, key := range keys {
		stats, err := s.registry.Statistics(key)
		if err != nil {
			continue
		}
		out = append(out, KeyStatistics{Key: key, Stats: stats})
	}
	return out
}
