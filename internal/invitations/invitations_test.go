package invitations

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/repository"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
	"github.com/aetherium-labs/aetherium-backend/internal/users"
)

type fixture struct {
	svc      *Service
	projects *service.ProjectService
	project  *domain.Project
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dir := users.NewMemoryRepo()
	_, err := dir.EnsureUser(ctx, users.UpsertUser{FirebaseUID: "owner", Email: "owner@example.com"})
	require.NoError(t, err)
	_, err = dir.EnsureUser(ctx, users.UpsertUser{FirebaseUID: "friend", Email: "Friend@example.com"})
	require.NoError(t, err)

	projects := service.NewProjectService(repository.NewMemoryRepository())
	p, err := projects.Create(ctx, "owner", "shop", domain.TypeAnalysis)
	require.NoError(t, err)

	return fixture{
		svc:      NewService(NewMemoryRepo(), projects, NewDirectoryResolver(dir)),
		projects: projects,
		project:  p,
	}
}

func TestService_InviteAndAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, "owner", f.project.ID, " friend@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "friend", inv.InviteeID)
	assert.Equal(t, "shop", inv.ProjectName)
	assert.Equal(t, StatusPending, inv.Status)

	_, err = f.svc.Invite(ctx, "owner", f.project.ID, "friend@example.com")
	assert.ErrorIs(t, err, ErrDuplicate)

	items, err := f.svc.List(ctx, "friend")
	require.NoError(t, err)
	require.Len(t, items, 1)

	got, err := f.svc.Accept(ctx, "friend", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	require.NotNil(t, got.RespondedAt)

	shared, err := f.projects.GetShared(ctx, "friend", "owner", f.project.ID)
	require.NoError(t, err)
	assert.Contains(t, shared.Collaborators, "friend")

	_, err = f.svc.Accept(ctx, "friend", inv.ID)
	assert.ErrorIs(t, err, ErrAlreadyResponded)
	_, err = f.svc.Decline(ctx, "friend", inv.ID)
	assert.ErrorIs(t, err, ErrAlreadyResponded)

	_, err = f.svc.Invite(ctx, "owner", f.project.ID, "friend@example.com")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestService_Decline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, "owner", f.project.ID, "friend@example.com")
	require.NoError(t, err)
	got, err := f.svc.Decline(ctx, "friend", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, got.Status)

	_, err = f.projects.GetShared(ctx, "friend", "owner", f.project.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// a declined invitation does not block a new one
	_, err = f.svc.Invite(ctx, "owner", f.project.ID, "friend@example.com")
	assert.NoError(t, err)
}

func TestService_InviteErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		ownerID   string
		projectID string
		email     string
		want      error
	}{
		{"bad email", "owner", f.project.ID, "not-an-email", ErrInvalid},
		{"empty email", "owner", f.project.ID, "", ErrInvalid},
		{"unknown user", "owner", f.project.ID, "nobody@example.com", ErrUserNotFound},
		{"self", "owner", f.project.ID, "owner@example.com", ErrInvalid},
		{"missing project", "owner", "nope", "friend@example.com", domain.ErrNotFound},
		{"not the owner", "friend", f.project.ID, "owner@example.com", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Invite(ctx, tt.ownerID, tt.projectID, tt.email)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.svc.Accept(ctx, "friend", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeLookup struct {
	rec *fbauth.UserRecord
	err error
}

func (f fakeLookup) GetUserByEmail(ctx context.Context, email string) (*fbauth.UserRecord, error) {
	return f.rec, f.err
}

func TestFirebaseResolver(t *testing.T) {
	ctx := context.Background()

	r := NewFirebaseResolver(fakeLookup{rec: &fbauth.UserRecord{UserInfo: &fbauth.UserInfo{UID: "u9"}}})
	uid, err := r.ResolveUID(ctx, "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, "u9", uid)

	r = NewFirebaseResolver(fakeLookup{rec: &fbauth.UserRecord{}})
	_, err = r.ResolveUID(ctx, "a@b.co")
	assert.ErrorIs(t, err, ErrUserNotFound)

	boom := errors.New("boom")
	r = NewFirebaseResolver(fakeLookup{err: boom})
	_, err = r.ResolveUID(ctx, "a@b.co")
	assert.ErrorIs(t, err, boom)
}

var invitationColumnNames = []string{
	"id", "project_id", "project_name", "owner_uid", "invitee_uid", "invitee_email", "status", "created_at", "responded_at",
}

func TestPostgresRepo_Respond(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invitations SET status")).
		WithArgs("u2", "i1", StatusAccepted, now).
		WillReturnRows(sqlmock.NewRows(invitationColumnNames).
			AddRow("i1", "p1", "shop", "u1", "u2", "u2@example.com", StatusAccepted, now, now))

	inv, err := repo.Respond(ctx, "u2", "i1", StatusAccepted, now)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, inv.Status)
	require.NotNil(t, inv.RespondedAt)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invitations SET status")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM invitations WHERE invitee_uid = $1 AND id = $2")).
		WithArgs("u2", "i1").
		WillReturnRows(sqlmock.NewRows(invitationColumnNames).
			AddRow("i1", "p1", "shop", "u1", "u2", "u2@example.com", StatusAccepted, now, now))

	_, err = repo.Respond(ctx, "u2", "i1", StatusDeclined, now)
	assert.ErrorIs(t, err, ErrAlreadyResponded)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invitations SET status")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM invitations")).WillReturnError(sql.ErrNoRows)

	_, err = repo.Respond(ctx, "u2", "gone", StatusDeclined, now)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_HasPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs("u2", "u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewPostgresRepo(db).HasPending(context.Background(), "u2", "u1", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	gin.SetMode(gin.TestMode)

	as := func(uid string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set(auth.CtxFirebaseUID, uid); c.Next() })
		h := NewHandler(f.svc)
		h.RegisterProjectRoutes(r.Group("/projects"))
		h.Register(r.Group("/invitations"))
		return r
	}
	do := func(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	owner, friend := as("owner"), as("friend")

	w := do(owner, http.MethodPost, "/projects/"+f.project.ID+"/invitations", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(owner, http.MethodPost, "/projects/"+f.project.ID+"/invitations", `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(owner, http.MethodPost, "/projects/"+f.project.ID+"/invitations", `{"email":"friend@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(owner, http.MethodPost, "/projects/"+f.project.ID+"/invitations", `{"email":"friend@example.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	items, err := f.svc.List(context.Background(), "friend")
	require.NoError(t, err)
	require.Len(t, items, 1)

	w = do(friend, http.MethodGet, "/invitations", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), items[0].ID)

	w = do(owner, http.MethodPost, "/invitations/"+items[0].ID+"/accept", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(friend, http.MethodPost, "/invitations/"+items[0].ID+"/accept", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(friend, http.MethodPost, "/invitations/"+items[0].ID+"/decline", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}
