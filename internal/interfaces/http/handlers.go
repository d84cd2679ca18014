package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/models"
)

// maxRunHistory bounds the in-memory run report history.
const maxRunHistory = 20

// SyncRunner is the pipeline entry point the handlers call.
type SyncRunner interface {
	RunSync(ctx context.Context, lookbackHours int) (*models.SyncRun, error)
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	runner SyncRunner
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	history []*models.SyncRun
}

// NewHandlers creates a new Handlers instance
func NewHandlers(runner SyncRunner, logger *zap.Logger) *Handlers {
	return &Handlers{
		runner: runner,
		logger: logger,
	}
}

// Health handles GET /healthz
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// TriggerSync handles POST /api/v1/sync. Only one run may be in flight at
// a time; concurrent triggers get 409.
func (h *Handlers) TriggerSync(c *gin.Context) {
	lookback := 0
	if raw := c.Query("lookback_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, Response{Error: "lookback_hours must be a positive integer"})
			return
		}
		lookback = parsed
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, Response{Error: "a sync run is already in progress"})
		return
	}
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	run, err := h.runner.RunSync(c.Request.Context(), lookback)
	if err != nil {
		h.logger.Error("Sync run failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, Response{Error: err.Error()})
		return
	}

	h.recordRun(run)
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// LatestRun handles GET /api/v1/runs/latest
func (h *Handlers) LatestRun(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.history) == 0 {
		c.JSON(http.StatusNotFound, Response{Error: "no runs yet"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.history[len(h.history)-1]})
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.JSON(http.StatusOK, Response{Success: true, Data: h.history})
}

func (h *Handlers) recordRun(run *models.SyncRun) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, run)
	if len(h.history) > maxRunHistory {
		h.history = h.history[len(h.history)-maxRunHistory:]
	}
}
