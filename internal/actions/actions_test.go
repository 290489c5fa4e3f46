package actions

import (
	"context"
	"errors"
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
	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/repository"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
	"github.com/aetherium-labs/aetherium-backend/internal/workspace"
)

type recordingClearer struct {
	calls []string
}

func (r *recordingClearer) ClearProject(uid, projectID string) int {
	r.calls = append(r.calls, uid+"/"+projectID)
	return 1
}

func (r *recordingClearer) AppendHistory(string, string, string) bool { return false }

type failingBus struct{ events.Bus }

func (failingBus) Publish(context.Context, events.Event) error { return errors.New("redis down") }

func setup(t *testing.T) (*Service, *service.ProjectService, *events.LocalBus, *recordingClearer) {
	t.Helper()
	projects := service.NewProjectService(repository.NewMemoryRepository())
	bus := events.NewLocalBus()
	clearer := &recordingClearer{}
	return New(projects, bus, clearer), projects, bus, clearer
}

func TestDeleteProject_RemovesAndSignals(t *testing.T) {
	svc, projects, bus, clearer := setup(t)
	ctx := context.Background()

	p, err := projects.Create(ctx, "u1", "doomed", domain.TypeAnalysis)
	require.NoError(t, err)

	ch, cancel, err := bus.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, svc.DeleteProject(ctx, "u1", p.ID))

	items, err := projects.List(ctx, "u1")
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, p.ID, it.ID)
	}
	assert.Equal(t, []string{"u1/" + p.ID}, clearer.calls)

	select {
	case ev := <-ch:
		assert.Equal(t, events.TypeProjectDeleted, ev.Type)
		assert.Equal(t, p.ID, ev.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("no revalidation signal")
	}
}

func TestDeleteProject_NotFound(t *testing.T) {
	svc, _, _, clearer := setup(t)
	err := svc.DeleteProject(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, clearer.calls)
}

func TestDeleteProject_SignalFailureIsNotAnError(t *testing.T) {
	projects := service.NewProjectService(repository.NewMemoryRepository())
	svc := New(projects, failingBus{}, nil)
	ctx := context.Background()

	p, err := projects.Create(ctx, "u1", "p", domain.TypeChat)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProject(ctx, "u1", p.ID))

	_, err = projects.Get(ctx, "u1", p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyChanges_RecordsHistoryOnly(t *testing.T) {
	svc, projects, _, _ := setup(t)
	ctx := context.Background()

	p, err := projects.Create(ctx, "u1", "p", domain.TypeAnalysis)
	require.NoError(t, err)

	require.NoError(t, svc.ApplyChanges(ctx, "u1", p.ID, "diff --git a b"))
	got, err := projects.Get(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, "Changes applied", got.History[1].Message)

	assert.ErrorIs(t, svc.ApplyChanges(ctx, "u1", p.ID, "  "), service.ErrInvalid)
	assert.ErrorIs(t, svc.ApplyChanges(ctx, "u1", "missing", "x"), domain.ErrNotFound)
}

func TestApplyChanges_OpenWorkspaceKeepsSaving(t *testing.T) {
	for _, mode := range []workspace.Concurrency{workspace.Optimistic, workspace.LastWriteWins} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			projects := service.NewProjectService(repository.NewMemoryRepository())
			p, err := projects.Create(ctx, "u1", "p", domain.TypeAnalysis)
			require.NoError(t, err)

			reg := workspace.NewRegistry(projects, workspace.RegistryOptions{Concurrency: mode, SessionTTL: time.Minute})
			defer reg.Close(ctx)
			st, err := reg.Get(ctx, "u1", "tab-1")
			require.NoError(t, err)
			require.Equal(t, p.ID, st.Snapshot().ProjectID)

			svc := New(projects, events.NewLocalBus(), reg)
			require.NoError(t, svc.ApplyChanges(ctx, "u1", p.ID, "diff"))
			require.NoError(t, st.AddChatMessage(domain.ChatMessage{Role: domain.RoleUser, Content: "hello"}))

			require.NoError(t, st.Flush(ctx))
			assert.Empty(t, st.Snapshot().SaveError)

			got, err := projects.Get(ctx, "u1", p.ID)
			require.NoError(t, err)
			require.Len(t, got.History, 2)
			assert.Equal(t, "Changes applied", got.History[1].Message)
			require.Len(t, got.ChatHistory, 1)
			assert.Equal(t, "hello", got.ChatHistory[0].Content)
		})
	}
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, projects, _, _ := setup(t)
	p, err := projects.Create(context.Background(), "u1", "p", domain.TypeAnalysis)
	require.NoError(t, err)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxFirebaseUID, "u1"); c.Next() })
	NewHandler(svc).Register(r.Group("/projects"))

	do := func(method, path, body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusAccepted, do(http.MethodPost, "/projects/"+p.ID+"/apply-changes", `{"changes":"x"}`))
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/projects/"+p.ID+"/apply-changes", `{"changes":""}`))
	assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/projects/"+p.ID, ""))
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/projects/"+p.ID, ""))
}
