package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/response"
)

// SystemHandler reports process health.
type SystemHandler struct {
	rdb       *redis.Client
	backend   string
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil.
func NewSystemHandler(rdb *redis.Client, backend string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		backend:   backend,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Store      string `json:"store"`
	Redis      string `json:"redis"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
}

// Health godoc
// GET /health
// Redis being down degrades caching but does not stop the engine.
func (h *SystemHandler) Health(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := healthReport{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Truncate(time.Second).String(),
		Store:      h.backend,
		Redis:      "disabled",
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
	}

	if h.rdb != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			h.log.Warn().Err(err).Msg("Redis ping failed")
			report.Status = "degraded"
			report.Redis = "unreachable"
		} else {
			report.Redis = "ok"
		}
	}

	response.Success(c, http.StatusOK, report)
}
