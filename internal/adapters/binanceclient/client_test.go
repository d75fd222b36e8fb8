package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rsiTrendBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func klineRow(openMs int64, close string) string {
	closeMs := openMs + 15*60*1000 - 1
	return fmt.Sprintf(`[%d,"100.0","110.0","90.0","%s","12.5",%d,"1250.0",42,"6.0","600.0","0"]`, openMs, close, closeMs)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:    srv.URL,
		Logger:     &mockLogger{},
		RetryDelay: time.Millisecond,
		MaxRetries: retries,
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestClient_GetKlines(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := base.UnixMilli()
	second := base.Add(15 * time.Minute).UnixMilli()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s,%s]", klineRow(first, "101.5"), klineRow(second, "102.25"))
	}, 0)
	// The second bar is still open at "now".
	c.now = func() time.Time { return base.Add(20 * time.Minute) }

	klines, err := c.GetKlines(context.Background(), "BTCUSDT", "15m", 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)

	assert.Equal(t, 101.5, klines[0].Close)
	assert.Equal(t, 102.25, klines[1].Close)
	assert.Equal(t, 110.0, klines[0].High)
	assert.Equal(t, 12.5, klines[0].Volume)
	assert.True(t, klines[0].OpenTime.Equal(base))
	assert.True(t, klines[0].IsFinal)
	assert.False(t, klines[1].IsFinal)
	assert.Equal(t, "BTCUSDT", klines[1].Symbol)
	assert.Equal(t, "15m", klines[1].Interval)
}

func TestClient_GetKlines_InvalidArguments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, 0)

	_, err := c.GetKlines(context.Background(), "BTCUSDT", "7m", 10)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = c.GetKlines(context.Background(), "BTCUSDT", "1h", 0)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestClient_GetKlines_MalformedPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "[%s]", klineRow(time.Now().UnixMilli(), "abc"))
	}, 0)

	_, err := c.GetKlines(context.Background(), "BTCUSDT", "15m", 1)
	assert.ErrorIs(t, err, ports.ErrMalformedData)
}

func TestClient_APIErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"invalid symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, ports.ErrInvalidSymbol},
		{"bad parameter", http.StatusBadRequest, `{"code":-1100,"msg":"Illegal characters"}`, ports.ErrInvalidRequest},
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests"}`, ports.ErrRateLimited},
		{"unknown code", http.StatusBadRequest, `{"code":-9999,"msg":"???"}`, ports.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}, 0)

			_, err := c.GetKlines(context.Background(), "BTCUSDT", "1h", 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests"}`)
			return
		}
		fmt.Fprintf(w, "[%s]", klineRow(time.Now().Add(-time.Hour).UnixMilli(), "99"))
	}, 3)

	klines, err := c.GetKlines(context.Background(), "BTCUSDT", "15m", 1)
	require.NoError(t, err)
	require.Len(t, klines, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	}, 3)

	_, err := c.GetKlines(context.Background(), "NOPE", "15m", 1)
	assert.ErrorIs(t, err, ports.ErrInvalidSymbol)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GetPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `[{"symbol":"BTCUSDT","price":"64250.10"}]`)
	}, 0)

	price, err := c.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 64250.10, price, 1e-9)
}

func TestClient_Name(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, 0)
	assert.Equal(t, SourceName, c.Name())
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ping", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}, 0)
	require.NoError(t, c.Ping(context.Background()))

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, `{"code":-1000,"msg":"unknown"}`)
	}, 0)
	assert.Error(t, down.Ping(context.Background()))
}
