package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
)

type AIOperationStats struct {
	Calls            int64   `json:"calls"`
	Errors           int64   `json:"errors"`
	AverageLatencyMs float64 `json:"averageLatencyMs"`
	ErrorRate        float64 `json:"errorRate"`
}

type HealthResponse struct {
	Status    string                      `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
	Service   string                      `json:"service"`
	Version   string                      `json:"version"`
	DB        string                      `json:"db,omitempty"`
	Redis     string                      `json:"redis,omitempty"`
	AI        map[string]AIOperationStats `json:"ai"`
}

type HealthHandler struct {
	serviceName string
	version     string
	db          *pgxpool.Pool
	redis       *redis.Client
}

// NewHealthHandler builds the handler; db and rdb may be nil when the
// corresponding backend is not configured.
func NewHealthHandler(serviceName, version string, db *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		db:          db,
		redis:       rdb,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DB:        "disabled",
		Redis:     "disabled",
		AI:        make(map[string]AIOperationStats),
	}

	if h.db != nil {
		resp.DB = "up"
		if err := h.db.Ping(ctx); err != nil {
			resp.DB = "down"
			resp.Status = "degraded"
		}
	}
	if h.redis != nil {
		resp.Redis = "up"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			resp.Redis = "down"
			resp.Status = "degraded"
		}
	}

	for op, s := range llm.GetMetrics() {
		resp.AI[op] = AIOperationStats{
			Calls:            s.Calls,
			Errors:           s.Errors,
			AverageLatencyMs: s.AverageLatencyMs(),
			ErrorRate:        s.ErrorRate(),
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
