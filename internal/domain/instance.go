package domain

import (
	"fmt"
	"strings"
)

// InstanceKey identifies one independently evaluated (symbol, timeframe) pair.
type InstanceKey struct {
	Symbol    string
	Timeframe string
}

// String returns the "SYMBOL_TF" form used in logs and callback data.
func (k InstanceKey) String() string {
	return k.Symbol + "_" + k.Timeframe
}

// ParseInstanceKey parses the "SYMBOL_TF" form produced by String.
func ParseInstanceKey(s string) (InstanceKey, error) {
	symbol, timeframe, ok := strings.Cut(s, "_")
	if !ok || symbol == "" || timeframe == "" {
		return InstanceKey{}, fmt.Errorf("invalid instance key %q", s)
	}
	return InstanceKey{Symbol: symbol, Timeframe: timeframe}, nil
}
