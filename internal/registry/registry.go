// Package registry owns one strategy instance per configured (symbol, timeframe) pair
// and serialises access to each instance.
package registry

import (
	"context"
	"fmt"
	"sync"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"
	"rsiTrendBot/internal/strategy"
)

type entry struct {
	mu       sync.Mutex
	strategy *strategy.FollowTrend
}

// Registry holds the strategy instances. Instances are created once and never removed.
type Registry struct {
	keys    []domain.InstanceKey
	entries map[domain.InstanceKey]*entry
}

// New creates one instance per symbol and timeframe combination, symbols first.
func New(symbols, timeframes []string, cfg strategy.Config, logger ports.Logger) (*Registry, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for registry")
	}
	if len(symbols) == 0 || len(timeframes) == 0 {
		return nil, fmt.Errorf("at least one symbol and one timeframe are required")
	}

	r := &Registry{entries: make(map[domain.InstanceKey]*entry)}
	for _, symbol := range symbols {
		for _, tf := range timeframes {
			key := domain.InstanceKey{Symbol: symbol, Timeframe: tf}
			if _, exists := r.entries[key]; exists {
				return nil, fmt.Errorf("duplicate instance %s", key)
			}
			s, err := strategy.New(key, cfg, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create strategy for %s: %w", key, err)
			}
			r.entries[key] = &entry{strategy: s}
			r.keys = append(r.keys, key)
		}
	}
	logger.Info(context.Background(), "Strategy instances created", map[string]interface{}{"count": len(r.keys)})
	return r, nil
}

// Keys returns the instance keys in configuration order.
func (r *Registry) Keys() []domain.InstanceKey {
	keys := make([]domain.InstanceKey, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Has reports whether key is registered.
func (r *Registry) Has(key domain.InstanceKey) bool {
	_, ok := r.entries[key]
	return ok
}

// With runs fn while holding the lock of the instance for key.
// fn must not retain the strategy after returning.
func (r *Registry) With(key domain.InstanceKey, fn func(s *strategy.FollowTrend) error) error {
	e, ok := r.entries[key]
	if !ok {
		return fmt.Errorf("instance %s: %w", key, ports.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.strategy)
}

// Status returns the status snapshot of the instance for key.
func (r *Registry) Status(key domain.InstanceKey) (strategy.Status, error) {
	var status strategy.Status
	err := r.With(key, func(s *strategy.FollowTrend) error {
		status = s.Status()
		return nil
	})
	return status, err
}

// Statistics returns the statistics snapshot of the instance for key.
func (r *Registry) Statistics(key domain.InstanceKey) (domain.Statistics, error) {
	var stats domain.Statistics
	err := r.With(key, func(s *strategy.FollowTrend) error {
		stats = s.Statistics()
		return nil
	})
	return stats, err
}
