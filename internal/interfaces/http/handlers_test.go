package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/models"
)

type stubRunner struct {
	run *models.SyncRun
	err error

	gotLookback int
}

func (s *stubRunner) RunSync(_ context.Context, lookbackHours int) (*models.SyncRun, error) {
	s.gotLookback = lookbackHours
	if s.err != nil {
		return nil, s.err
	}
	return s.run, nil
}

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/sync", h.TriggerSync)
	r.GET("/api/v1/runs/latest", h.LatestRun)
	return r
}

func TestTriggerSync_OK(t *testing.T) {
	run := models.NewSyncRun(24)
	run.RecordSeen(3)
	runner := &stubRunner{run: run}
	router := newTestRouter(NewHandlers(runner, zap.NewNop()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync?lookback_hours=48", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 48, runner.gotLookback)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestTriggerSync_BadLookback(t *testing.T) {
	router := newTestRouter(NewHandlers(&stubRunner{}, zap.NewNop()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync?lookback_hours=nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerSync_DiscoveryFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("document discovery failed: folder unreachable")}
	router := newTestRouter(NewHandlers(runner, zap.NewNop()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestLatestRun(t *testing.T) {
	h := NewHandlers(&stubRunner{run: models.NewSyncRun(24)}, zap.NewNop())
	router := newTestRouter(h)

	// No runs yet.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// After a sync, the latest run is served.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
