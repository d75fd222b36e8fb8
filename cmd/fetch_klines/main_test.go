package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/strategy/indicators"
)

func klinesFrom(closes []float64) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		open := start.Add(time.Duration(i) * time.Hour)
		out[i] = &domain.Kline{OpenTime: open, CloseTime: open.Add(time.Hour - time.Millisecond), Close: c, IsFinal: true}
	}
	return out
}

func TestBuildRows(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 102, 104}
	rows, series := buildRows(klinesFrom(closes), 3, 2, 3)

	require.Equal(t, []float64{80, 50, 80}, series)
	require.Len(t, rows, 3)
	assert.Equal(t, 103.0, rows[0].Kline.Close)
	assert.Equal(t, 104.0, rows[2].Kline.Close)
	assert.Equal(t, 80.0, rows[0].EMA) // shorter than the period: mean
	assert.Equal(t, indicators.ComputeEMA(series, 2), rows[2].EMA)
	assert.Equal(t, indicators.ComputeWMA(series, 3), rows[2].WMA)
}

func TestBuildRows_NotEnoughData(t *testing.T) {
	rows, series := buildRows(klinesFrom([]float64{1, 2}), 14, 9, 45)
	assert.Nil(t, rows)
	assert.Nil(t, series)
}

func TestRenderTable_LastRows(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 102, 104}
	rows, _ := buildRows(klinesFrom(closes), 3, 2, 3)

	var buf bytes.Buffer
	renderTable(&buf, rows, 2, 2, 3)
	out := buf.String()
	assert.Contains(t, out, "EMA2")
	assert.Contains(t, out, "WMA3")
	assert.Contains(t, out, "104.00")
	assert.NotContains(t, out, "103.00")
}
