package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	llm.ResetMetrics()
	t.Cleanup(llm.ResetMetrics)
	llm.RecordCall("image", 20*time.Millisecond, nil)
	llm.RecordCall("image", 40*time.Millisecond, errors.New("boom"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	r := gin.New()
	NewHealthHandler("aetherium", "test", nil, rdb).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "disabled", resp.DB)
	assert.Equal(t, "up", resp.Redis)
	require.Contains(t, resp.AI, "image")
	assert.Equal(t, int64(2), resp.AI["image"].Calls)
	assert.InDelta(t, 50.0, resp.AI["image"].ErrorRate, 0.01)
	assert.InDelta(t, 30.0, resp.AI["image"].AverageLatencyMs, 0.01)

	mr.Close()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Redis)
}
