package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/storage/postgres"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository provides persistence operations for projects
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new project repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const projectColumns = `id, owner_uid, name, project_type, is_public, collaborators, version,
analysis_report, frontend_suggestions, backend_suggestions, history, chat_history, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p                  domain.Project
		projectType        string
		collaborators      pq.StringArray
		frontend, backend  []byte
		history, chatTurns []byte
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &projectType, &p.IsPublic, &collaborators, &p.Version,
		&p.AnalysisReport, &frontend, &backend, &history, &chatTurns, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ProjectType = domain.ProjectType(projectType)
	p.Collaborators = []string(collaborators)
	if p.Collaborators == nil {
		p.Collaborators = []string{}
	}

	if err := unmarshalNullable(frontend, &p.FrontendSuggestions); err != nil {
		return nil, fmt.Errorf("decode frontend_suggestions: %w", err)
	}
	if err := unmarshalNullable(backend, &p.BackendSuggestions); err != nil {
		return nil, fmt.Errorf("decode backend_suggestions: %w", err)
	}
	if err := unmarshalNullable(history, &p.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if err := unmarshalNullable(chatTurns, &p.ChatHistory); err != nil {
		return nil, fmt.Errorf("decode chat_history: %w", err)
	}
	p.State = p.State.Clone()
	return &p, nil
}

func unmarshalNullable(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

type stateColumns struct {
	frontend, backend, history, chat []byte
}

func encodeState(st domain.State) (stateColumns, error) {
	st = st.Clone()
	var (
		out stateColumns
		err error
	)
	if st.FrontendSuggestions != nil {
		if out.frontend, err = json.Marshal(st.FrontendSuggestions); err != nil {
			return out, err
		}
	}
	if st.BackendSuggestions != nil {
		if out.backend, err = json.Marshal(st.BackendSuggestions); err != nil {
			return out, err
		}
	}
	if out.history, err = json.Marshal(st.History); err != nil {
		return out, err
	}
	if out.chat, err = json.Marshal(st.ChatHistory); err != nil {
		return out, err
	}
	return out, nil
}

// Create inserts a new project, retrying on public ID collisions.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("owner id required")
	}
	if p.Name == "" {
		return nil, fmt.Errorf("name required")
	}
	cols, err := encodeState(p.State)
	if err != nil {
		return nil, err
	}
	collaborators := p.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}

	for i := 0; i < maxIDAttempts; i++ {
		id, err := domain.NewPublicID(domain.IDPrefix)
		if err != nil {
			return nil, err
		}

		q := `
INSERT INTO projects (id, owner_uid, name, project_type, is_public, collaborators, version,
    analysis_report, frontend_suggestions, backend_suggestions, history, chat_history)
VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $10, $11)
RETURNING ` + projectColumns + `;
`
		created, err := scanProject(r.db.QueryRowContext(ctx, q, id, p.OwnerID, p.Name, string(p.ProjectType),
			p.IsPublic, pq.Array(collaborators), p.AnalysisReport, cols.frontend, cols.backend, cols.history, cols.chat))
		if err == nil {
			return created, nil
		}

		// unique violation on id → retry
		if postgres.IsUniqueViolation(err) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE owner_uid = $1 AND id = $2;`
	p, err := scanProject(r.db.QueryRowContext(ctx, q, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, ownerID string) (*domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE owner_uid = $1 ORDER BY created_at DESC LIMIT 1;`
	p, err := scanProject(r.db.QueryRowContext(ctx, q, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns all projects for the given owner, newest first.
func (r *PostgresRepository) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE owner_uid = $1 ORDER BY created_at DESC;`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update changes name and visibility; nil patch fields keep their value.
func (r *PostgresRepository) Update(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Project, error) {
	var name sql.NullString
	if patch.Name != nil {
		name = sql.NullString{String: *patch.Name, Valid: true}
	}
	var isPublic sql.NullBool
	if patch.IsPublic != nil {
		isPublic = sql.NullBool{Bool: *patch.IsPublic, Valid: true}
	}

	q := `
UPDATE projects
SET name = COALESCE($3, name), is_public = COALESCE($4, is_public), updated_at = now()
WHERE owner_uid = $1 AND id = $2
RETURNING ` + projectColumns + `;
`
	p, err := scanProject(r.db.QueryRowContext(ctx, q, ownerID, id, name, isPublic))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// SaveState writes only the mutable columns. A version mismatch is told apart
// from a missing row with a follow-up existence check.
func (r *PostgresRepository) SaveState(ctx context.Context, ownerID, id string, state domain.State, expectedVersion int64) (int64, error) {
	cols, err := encodeState(state)
	if err != nil {
		return 0, err
	}

	const q = `
UPDATE projects
SET analysis_report = $4, frontend_suggestions = $5, backend_suggestions = $6,
    history = $7, chat_history = $8, version = version + 1, updated_at = now()
WHERE owner_uid = $1 AND id = $2 AND ($3 < 0 OR version = $3)
RETURNING version;
`
	var version int64
	err = r.db.QueryRowContext(ctx, q, ownerID, id, expectedVersion, state.AnalysisReport,
		cols.frontend, cols.backend, cols.history, cols.chat).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	exists, err := r.exists(ctx, ownerID, id)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, domain.ErrNotFound
	}
	return 0, domain.ErrConflict
}

func (r *PostgresRepository) exists(ctx context.Context, ownerID, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM projects WHERE owner_uid = $1 AND id = $2);`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, ownerID, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *PostgresRepository) AddCollaborator(ctx context.Context, ownerID, id, uid string) error {
	const q = `
UPDATE projects
SET collaborators = array_append(collaborators, $3), updated_at = now()
WHERE owner_uid = $1 AND id = $2 AND NOT ($3 = ANY(collaborators));
`
	res, err := r.db.ExecContext(ctx, q, ownerID, id, uid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Either missing or already a collaborator.
	exists, err := r.exists(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the row; projects are not soft-deleted.
func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	const q = `DELETE FROM projects WHERE owner_uid = $1 AND id = $2;`
	res, err := r.db.ExecContext(ctx, q, ownerID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
