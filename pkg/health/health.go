// Package health serves Kubernetes-style liveness and readiness probes.
// Checks run periodically in the background; probe endpoints report the last
// observed state instead of executing checks inline. A check flips unhealthy
// only after three consecutive failures, so one slow poll does not take the
// service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

const failureThreshold = 3

// check holds one registered check and its observed state. The fail counter
// is touched only by the single poll goroutine; healthy and lastErr are read
// concurrently by probe handlers.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]
	fails   int
}

func (c *check) poll(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(cctx)
	c.lastErr.Store(&err)

	if err != nil {
		c.fails++
		if c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.healthy.Store(true)
}

// Health tracks liveness and readiness checks for one service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health in the not-ready state; call SetReady(true) once
// initialization finishes.
func New() *Health {
	return &Health{}
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true) // assumed healthy until observed otherwise
	return c
}

// AddLivenessCheck registers a process-health check (goroutine leaks,
// deadlocks).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn))
	h.mu.Unlock()
}

// AddReadinessCheck registers a traffic-readiness check (collaborator
// reachability).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn))
	h.mu.Unlock()
}

// Start polls every registered check at the given interval until ctx is
// cancelled or Stop is called. Register all checks before starting.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append(append([]*check(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go func(c *check) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.poll(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.poll(ctx)
				}
			}
		}(c)
	}
}

// Stop cancels the background polling. Safe to call repeatedly.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown to drain traffic before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	checks := h.readiness
	h.mu.RUnlock()
	for _, c := range checks {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

// LiveEndpoint handles /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := append([]*check(nil), h.liveness...)
	h.mu.RUnlock()
	writeProbe(w, failures(checks))
}

// ReadyEndpoint handles /readyz. It fails while the manual gate is closed
// even when every check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := append([]*check(nil), h.readiness...)
	h.mu.RUnlock()

	fs := failures(checks)
	if !h.ready.Load() {
		fs["_readiness"] = "service is not ready"
	}
	writeProbe(w, fs)
}

func failures(checks []*check) map[string]string {
	fs := make(map[string]string)
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		msg := "check is unhealthy"
		if p := c.lastErr.Load(); p != nil && *p != nil {
			msg = (*p).Error()
		}
		fs[c.name] = msg
	}
	return fs
}

func writeProbe(w http.ResponseWriter, fs map[string]string) {
	resp := struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}{Status: "ok"}

	status := http.StatusOK
	if len(fs) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = fs
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
