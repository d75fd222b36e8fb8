package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Symbol as configured (e.g., "BTCUSD")
	Interval  string    // Kline interval (e.g., "15m", "1h")
	Open      float64
	High      float64
	Low       float64
	Close     float64 // Closing price, the only field the indicators read
	Volume    float64
	IsFinal   bool // Whether this kline is the final one for the interval
}

// Closes extracts the closing prices in order.
func Closes(klines []*Kline) []float64 {
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		closes = append(closes, k.Close)
	}
	return closes
}
