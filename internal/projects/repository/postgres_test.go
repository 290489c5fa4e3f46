package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
)

var projectColumnNames = []string{
	"id", "owner_uid", "name", "project_type", "is_public", "collaborators", "version",
	"analysis_report", "frontend_suggestions", "backend_suggestions", "history", "chat_history",
	"created_at", "updated_at",
}

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO projects")).
		WithArgs(sqlmock.AnyArg(), "u1", "demo", "analysis", false, sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg(), []byte("[]"), []byte("[]")).
		WillReturnRows(sqlmock.NewRows(projectColumnNames).
			AddRow("aeth-12345-6789", "u1", "demo", "analysis", false, "{}", int64(1), "", nil, nil, []byte("[]"), []byte("[]"), now, now))

	p, err := repo.Create(context.Background(), &domain.Project{OwnerID: "u1", Name: "demo", ProjectType: domain.TypeAnalysis})
	require.NoError(t, err)
	assert.Equal(t, "aeth-12345-6789", p.ID)
	assert.Equal(t, int64(1), p.Version)
	assert.Empty(t, p.Collaborators)
	assert.NotNil(t, p.History)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateRetriesOnUniqueViolation(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnRows(sqlmock.NewRows(projectColumnNames).
			AddRow("aeth-22222-3333", "u1", "demo", "chat", false, "{}", int64(1), "", nil, nil, nil, nil, now, now))

	p, err := repo.Create(context.Background(), &domain.Project{OwnerID: "u1", Name: "demo", ProjectType: domain.TypeChat})
	require.NoError(t, err)
	assert.Equal(t, "aeth-22222-3333", p.ID)
	assert.Equal(t, domain.TypeChat, p.ProjectType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetDecodesState(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE owner_uid = $1 AND id = $2")).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows(projectColumnNames).AddRow(
			"p1", "u1", "demo", "analysis", true, "{u2,u3}", int64(4), "the report",
			[]byte(`{"suggestedChanges":"a","reasoning":"b","visualDescription":"c"}`), nil,
			[]byte(`[{"id":"1","message":"created","timestamp":"2024-01-01T00:00:00Z"}]`),
			[]byte(`[{"role":"user","content":"hi"}]`), now, now))

	p, err := repo.Get(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, p.Collaborators)
	assert.Equal(t, "the report", p.AnalysisReport)
	require.NotNil(t, p.FrontendSuggestions)
	assert.Equal(t, "c", p.FrontendSuggestions.VisualDescription)
	assert.Nil(t, p.BackendSuggestions)
	require.Len(t, p.History, 1)
	assert.Equal(t, "created", p.History[0].Message)
	assert.Equal(t, []domain.ChatMessage{{Role: "user", Content: "hi"}}, p.ChatHistory)
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM projects")).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresRepository_SaveState(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE projects")).
		WithArgs("u1", "p1", int64(3), "r", sqlmock.AnyArg(), sqlmock.AnyArg(), []byte("[]"), []byte("[]")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))

	v, err := repo.SaveState(context.Background(), "u1", "p1", domain.State{AnalysisReport: "r"}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SaveStateConflictVsNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE projects")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.SaveState(context.Background(), "u1", "p1", domain.State{}, 3)
	assert.ErrorIs(t, err, domain.ErrConflict)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE projects")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs("u1", "gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = repo.SaveState(context.Background(), "u1", "gone", domain.State{}, domain.AnyVersion)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Delete(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects")).WithArgs("u1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects")).WithArgs("u1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "u1", "p1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "u1", "p1"), domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(projectColumnNames).
			AddRow("p2", "u1", "b", "chat", false, "{}", int64(1), "", nil, nil, nil, nil, now, now).
			AddRow("p1", "u1", "a", "analysis", false, "{}", int64(1), "", nil, nil, nil, nil, now.Add(-time.Hour), now))

	items, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].ID)
}
