package workspace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/events"
)

type wsResp struct {
	OK        bool     `json:"ok"`
	Error     string   `json:"error"`
	Workspace Snapshot `json:"workspace"`
}

func setupHandler(t *testing.T) (*gin.Engine, *Registry, *events.LocalBus) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	projects, _ := newProjects()
	reg := NewRegistry(projects, RegistryOptions{SessionTTL: time.Minute})
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	bus := events.NewLocalBus()

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxFirebaseUID, "u1"); c.Next() })
	h := NewHandler(reg, bus)
	h.keepAlive = 10 * time.Millisecond
	h.Register(r.Group("/workspace"))
	return r, reg, bus
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, wsResp) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionHeader, "tab-1")
	r.ServeHTTP(w, req)

	var out wsResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestHandler_Flow(t *testing.T) {
	r, _, _ := setupHandler(t)

	code, out := do(t, r, http.MethodGet, "/workspace", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out.Workspace.ProjectID)

	code, out = do(t, r, http.MethodPost, "/workspace/project", `{"name":"Shop","projectType":"analysis"}`)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, out.Workspace.ProjectID)
	assert.Equal(t, "Shop", out.Workspace.ProjectName)

	code, out = do(t, r, http.MethodPut, "/workspace/report", `{"analysisReport":"# Report"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "# Report", out.Workspace.AnalysisReport)

	code, out = do(t, r, http.MethodPut, "/workspace/suggestions/frontend", `{"suggestedChanges":"a","reasoning":"b"}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, out.Workspace.FrontendSuggestions)

	code, out = do(t, r, http.MethodPut, "/workspace/suggestions/frontend", `null`)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, out.Workspace.FrontendSuggestions)

	code, _ = do(t, r, http.MethodPut, "/workspace/suggestions/sideways", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/workspace/chat", `{"role":"user","content":"hi"}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = do(t, r, http.MethodPost, "/workspace/chat", `{"role":"robot","content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/workspace/history", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = do(t, r, http.MethodPost, "/workspace/flush", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, out.Workspace.Dirty)

	code, _ = do(t, r, http.MethodPut, "/workspace/project/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, out = do(t, r, http.MethodDelete, "/workspace", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out.Workspace.ProjectID)
	assert.Empty(t, out.Workspace.ChatHistory)
}

func TestHandler_EventStream(t *testing.T) {
	r, reg, bus := setupHandler(t)

	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/workspace/events", nil).WithContext(ctx)
	req.Header.Set(SessionHeader, "tab-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, req)
	}()

	var st *Store
	require.Eventually(t, func() bool {
		var ok bool
		st, ok = reg.Lookup("u1", "tab-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	// let the handler subscribe before producing events
	time.Sleep(50 * time.Millisecond)
	st.SetAnalysisReport("streamed")
	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.TypeProjectDeleted, UserID: "u1", ProjectID: "p1"}))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: snapshot")
	assert.Contains(t, body, "streamed")
	assert.Contains(t, body, "event: revalidate")
	assert.Contains(t, body, `"projectId":"p1"`)
}
