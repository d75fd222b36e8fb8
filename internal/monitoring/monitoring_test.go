package monitoring

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordSignal("BTCUSD", "15m", "BUY1")
	m.RecordSignal("BTCUSD", "15m", "BUY1")
	m.RecordSignal("XAUUSD", "1h", "SELL2")
	m.RecordIndicators("BTCUSD", "15m", 61.5, 100, 99)
	m.RecordFetchError("binance")
	m.RecordSkippedUpdate("BTCUSD", "15m")
	m.RecordNotifyError()
	m.ObserveCheck(250 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("BTCUSD", "15m", "BUY1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("XAUUSD", "1h", "SELL2")))
	assert.Equal(t, 61.5, testutil.ToFloat64(m.IndicatorValue.WithLabelValues("BTCUSD", "15m", "rsi")))
	assert.Equal(t, 99.0, testutil.ToFloat64(m.IndicatorValue.WithLabelValues("BTCUSD", "15m", "wma")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrorsTotal.WithLabelValues("binance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesSkippedTotal.WithLabelValues("BTCUSD", "15m")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotifyErrorsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CheckDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordSignal("BTCUSD", "15m", "SELL1")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `rsibot_signals_total{symbol="BTCUSD",timeframe="15m",type="SELL1"} 1`)
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordFetchError("twelvedata")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FetchErrorsTotal.WithLabelValues("twelvedata")))
}

func TestHealthChecker(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	h := NewHealthChecker(5 * time.Minute)
	h.startTime = start
	h.now = func() time.Time { return now }

	assert.Equal(t, "starting", h.Status().Status)

	now = start.Add(10 * time.Minute)
	assert.Equal(t, "degraded", h.Status().Status)

	h.MarkCheck(nil)
	assert.Equal(t, "healthy", h.Status().Status)

	h.MarkCheck(errors.New("binance down"))
	st := h.Status()
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, "binance down", st.LastError)

	h.MarkCheck(nil)
	now = now.Add(6 * time.Minute)
	assert.Equal(t, "degraded", h.Status().Status)
}

func TestHealthChecker_ServeHTTP(t *testing.T) {
	h := NewHealthChecker(time.Minute)
	h.MarkCheck(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var st HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "healthy", st.Status)

	h.MarkCheck(errors.New("boom"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
