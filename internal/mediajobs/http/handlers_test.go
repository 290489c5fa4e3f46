package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/flows"
	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/llm/llmtest"
	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/repository"
	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/service"
	"github.com/aetherium-labs/aetherium-backend/internal/storage/blob"
)

type jobResp struct {
	OK   bool         `json:"ok"`
	Job  domain.Job   `json:"job"`
	Jobs []domain.Job `json:"jobs"`
}

func TestHandler_VideoJobLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fake := &llmtest.Fake{PollsUntilDone: 1, Video: &llm.Video{MIMEType: "video/mp4", Data: []byte("vid")}}
	fs, err := flows.New(fake, flows.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))
	require.NoError(t, err)

	jobs := service.NewJobService(repository.NewJobRepository(client), fs, blob.NewMemoryStore(), time.Minute)
	t.Cleanup(func() { _ = jobs.Shutdown(context.Background()) })

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxFirebaseUID, "u1"); c.Next() })
	New(jobs).Register(r.Group("/media-jobs"))

	call := func(method, path, body string) (int, jobResp) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		var out jobResp
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
		return w.Code, out
	}

	code, _ := call(http.MethodPost, "/media-jobs/video", `{"prompt":"x","aspectRatio":"4:3"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, started := call(http.MethodPost, "/media-jobs/video", `{"prompt":"a calm lake"}`)
	require.Equal(t, http.StatusAccepted, code)
	id := started.Job.JobID

	require.Eventually(t, func() bool {
		_, got := call(http.MethodGet, "/media-jobs/"+id, "")
		return got.Job.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	code, listed := call(http.MethodGet, "/media-jobs", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, listed.Jobs, 1)

	code, _ = call(http.MethodDelete, "/media-jobs/"+id, "")
	assert.Equal(t, http.StatusConflict, code)
	code, _ = call(http.MethodGet, "/media-jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}
