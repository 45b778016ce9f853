package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/subtrack/backend/internal/interfaces/http/dto"
)

// Pinger is satisfied by persistence.Database
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health check statuses
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDisabled = "disabled"
)

const pingTimeout = 2 * time.Second

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	db        Pinger
	redis     redis.UniversalClient
	version   string
	startTime time.Time
}

// NewHealthHandler creates a health handler. redis may be nil when the
// deployment runs without it.
func NewHealthHandler(db Pinger, rdb redis.UniversalClient, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     rdb,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Uptime    string `json:"uptime"`
}

// ReadinessResponse is the body of GET /health/ready
type ReadinessResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Health reports process liveness with the database status.
// It returns 200 even when the database is down.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{
		Status:    StatusUp,
		Database:  h.checkDB(c.Request.Context()),
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}

// Ready pings every dependency and returns 503 when one is down.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := map[string]string{
		"database": h.checkDB(ctx),
		"redis":    h.checkRedis(ctx),
	}

	ready := true
	for _, status := range checks {
		if status == StatusDown {
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{
		Success: ready,
		Data:    ReadinessResponse{Ready: ready, Checks: checks},
	})
}

func (h *HealthHandler) checkDB(ctx context.Context) string {
	if h.db == nil {
		return StatusDown
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return StatusDown
	}
	return StatusUp
}

func (h *HealthHandler) checkRedis(ctx context.Context) string {
	if h.redis == nil {
		return StatusDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return StatusDown
	}
	return StatusUp
}
