package domain

import "time"

// IndicatorValues is a snapshot of the three derived series at one point in time.
type IndicatorValues struct {
	RSI float64
	EMA float64
	WMA float64
}

// SignalEvent is an emitted trading signal for one instance.
type SignalEvent struct {
	ID         string
	Key        InstanceKey
	Type       SignalType
	Price      float64 // Close of the last bar of the batch that produced the signal
	Time       time.Time
	Indicators IndicatorValues
}

// Statistics holds the cumulative signal totals of one instance.
// The counters never decrease during the lifetime of the process.
type Statistics struct {
	TotalBuy1  int
	TotalBuy2  int
	TotalSell1 int
	TotalSell2 int
}

// Count returns the total for a given signal type.
func (s Statistics) Count(t SignalType) int {
	switch t {
	case SignalBuy1:
		return s.TotalBuy1
	case SignalBuy2:
		return s.TotalBuy2
	case SignalSell1:
		return s.TotalSell1
	case SignalSell2:
		return s.TotalSell2
	default:
		return 0
	}
}

// Total returns the sum of all counters.
func (s Statistics) Total() int {
	return s.TotalBuy1 + s.TotalBuy2 + s.TotalSell1 + s.TotalSell2
}
