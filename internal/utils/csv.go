package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"rsiTrendBot/internal/domain"
)

var klineHeader = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume", "rsi"}

// WriteKlinesToCSV writes klines with their RSI values to filename, creating its directory.
// rsi is aligned to the end of klines: rsi[len(rsi)-1] belongs to the last kline and
// klines without a value get an empty rsi cell.
func WriteKlinesToCSV(klines []*domain.Kline, rsi []float64, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteKlines(file, klines, rsi); err != nil {
		return err
	}
	return file.Close()
}

// WriteKlines writes the CSV rows to w. See WriteKlinesToCSV for the rsi alignment.
func WriteKlines(w io.Writer, klines []*domain.Kline, rsi []float64) error {
	if len(rsi) > len(klines) {
		return fmt.Errorf("%d rsi values for %d klines", len(rsi), len(klines))
	}
	writer := csv.NewWriter(w)

	if err := writer.Write(klineHeader); err != nil {
		return err
	}

	offset := len(klines) - len(rsi)
	for i, k := range klines {
		rsiCell := ""
		if i >= offset {
			rsiCell = strconv.FormatFloat(rsi[i-offset], 'f', 4, 64)
		}
		if err := writer.Write([]string{
			k.OpenTime.UTC().Format(time.RFC3339),
			k.CloseTime.UTC().Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
			rsiCell,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
