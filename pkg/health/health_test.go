package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeBody(t *testing.T, w *httptest.ResponseRecorder) (string, map[string]string) {
	t.Helper()
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Status, resp.Checks
}

func TestLiveEndpoint_HealthyByDefault(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, func(context.Context) error { return nil })

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	status, _ := probeBody(t, w)
	assert.Equal(t, "ok", status)
}

func TestReadyEndpoint_GateClosed(t *testing.T) {
	h := New()

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	status, checks := probeBody(t, w)
	assert.Equal(t, "unhealthy", status)
	assert.Contains(t, checks, "_readiness")
}

func TestReadyEndpoint_GateOpen(t *testing.T) {
	h := New()
	h.SetReady(true)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.IsReady())
}

func TestCheck_FailureThreshold(t *testing.T) {
	c := newCheck("flaky", time.Second, func(context.Context) error {
		return errors.New("down")
	})

	c.poll(context.Background())
	c.poll(context.Background())
	assert.True(t, c.healthy.Load(), "stays healthy below the threshold")

	c.poll(context.Background())
	assert.False(t, c.healthy.Load(), "third consecutive failure flips it")
}

func TestCheck_SingleSuccessRecovers(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	c := newCheck("backend", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		c.poll(context.Background())
	}
	require.False(t, c.healthy.Load())

	fail.Store(false)
	c.poll(context.Background())
	assert.True(t, c.healthy.Load())
}

func TestIsReady_FailingCheckBlocksReadiness(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("backend", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	for i := 0; i < 3; i++ {
		h.readiness[0].poll(context.Background())
	}

	assert.False(t, h.IsReady())

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	_, checks := probeBody(t, w)
	assert.Equal(t, "connection refused", checks["backend"])
}

func TestStartStop(t *testing.T) {
	var polls atomic.Int32
	h := New()
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		polls.Add(1)
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool { return polls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	h.Stop()

	n := polls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, polls.Load(), n+1, "polling stops after Stop")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
