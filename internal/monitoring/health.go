package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker tracks the outcome of the polling loop for /healthz.
type HealthChecker struct {
	mu        sync.RWMutex
	startTime time.Time
	lastCheck time.Time
	lastError string
	maxAge    time.Duration
	now       func() time.Time
}

// HealthStatus is the JSON body served by the health endpoint.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastCheck time.Time `json:"last_check,omitempty"`
	Uptime    string    `json:"uptime"`
	LastError string    `json:"last_error,omitempty"`
}

// NewHealthChecker creates a checker that reports "degraded" when no check
// completed within maxAge.
func NewHealthChecker(maxAge time.Duration) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// MarkCheck records a completed check. A nil error clears the last error.
func (h *HealthChecker) MarkCheck(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCheck = h.now()
	if err != nil {
		h.lastError = err.Error()
	} else {
		h.lastError = ""
	}
}

// Status builds the current health status.
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"
	switch {
	case h.lastCheck.IsZero():
		// Still waiting for the first check
		if now.Sub(h.startTime) > h.maxAge {
			status = "degraded"
		} else {
			status = "starting"
		}
	case now.Sub(h.lastCheck) > h.maxAge:
		status = "degraded"
	case h.lastError != "":
		status = "degraded"
	}

	return HealthStatus{
		Status:    status,
		Timestamp: now,
		LastCheck: h.lastCheck,
		Uptime:    now.Sub(h.startTime).Truncate(time.Second).String(),
		LastError: h.lastError,
	}
}

// ServeHTTP serves the health status as JSON.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()
	w.Header().Set("Content-Type", "application/json")
	if health.Status == "degraded" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
