package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gca-engine/vehicle"
)

func TestHandleTarget(t *testing.T) {
	s := NewServer(zerolog.Nop())
	var got vehicle.Target
	s.SubmitTarget = func(tg vehicle.Target) error {
		got = tg
		return nil
	}

	body := `{"x": 12.5, "y": -3.0, "depth": 1.5, "speed": 0.5, "hold": false}`
	req := httptest.NewRequest(http.MethodPost, "/target", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleTarget(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 12.5, got.X)
	assert.Equal(t, -3.0, got.Y)
	assert.Equal(t, 1.5, got.Depth)
	assert.False(t, got.Hold)
}

func TestHandleTargetRejected(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.SubmitTarget = func(vehicle.Target) error {
		return errors.New("target rejected: MODE_TRANSITION_REJECTED")
	}

	req := httptest.NewRequest(http.MethodPost, "/target", strings.NewReader(`{"x": 1}`))
	w := httptest.NewRecorder()
	s.handleTarget(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "MODE_TRANSITION_REJECTED")
}

func TestHandleTargetBadRequests(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.SubmitTarget = func(vehicle.Target) error { return nil }

	req := httptest.NewRequest(http.MethodGet, "/target", nil)
	w := httptest.NewRecorder()
	s.handleTarget(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/target", strings.NewReader("not json"))
	w = httptest.NewRecorder()
	s.handleTarget(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStatus(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.Status = func() any {
		return map[string]any{"mode": "SIMULATED/IDLE", "safe": false}
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.handleStatus(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "SIMULATED/IDLE")
}

func TestHandleSafe(t *testing.T) {
	s := NewServer(zerolog.Nop())
	var latched bool
	s.SetSafe = func(on bool) error {
		latched = on
		return nil
	}

	req := httptest.NewRequest(http.MethodPost, "/safe", strings.NewReader(`{"safe": true}`))
	w := httptest.NewRecorder()
	s.handleSafe(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, latched)
}
