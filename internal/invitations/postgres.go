package invitations

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var _ Repository = (*PostgresRepo)(nil)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const invitationColumns = `id, project_id, project_name, owner_uid, invitee_uid, invitee_email, status, created_at, responded_at`

func scanInvitation(row interface{ Scan(...any) error }) (*Invitation, error) {
	var (
		inv       Invitation
		responded sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.ProjectID, &inv.ProjectName, &inv.OwnerID, &inv.InviteeID,
		&inv.InviteeEmail, &inv.Status, &inv.CreatedAt, &responded); err != nil {
		return nil, err
	}
	if responded.Valid {
		t := responded.Time
		inv.RespondedAt = &t
	}
	return &inv, nil
}

func (r *PostgresRepo) Create(ctx context.Context, inv *Invitation) error {
	const q = `
INSERT INTO invitations (id, project_id, project_name, owner_uid, invitee_uid, invitee_email, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.db.ExecContext(ctx, q, inv.ID, inv.ProjectID, inv.ProjectName, inv.OwnerID,
		inv.InviteeID, inv.InviteeEmail, inv.Status, inv.CreatedAt)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, inviteeID, id string) (*Invitation, error) {
	const q = `SELECT ` + invitationColumns + ` FROM invitations WHERE invitee_uid = $1 AND id = $2;`
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, q, inviteeID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

func (r *PostgresRepo) List(ctx context.Context, inviteeID string) ([]Invitation, error) {
	const q = `SELECT ` + invitationColumns + ` FROM invitations WHERE invitee_uid = $1 ORDER BY created_at DESC;`
	rows, err := r.db.QueryContext(ctx, q, inviteeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) HasPending(ctx context.Context, inviteeID, ownerID, projectID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM invitations
  WHERE invitee_uid = $1 AND owner_uid = $2 AND project_id = $3 AND status = 'pending'
);
`
	var ok bool
	err := r.db.QueryRowContext(ctx, q, inviteeID, ownerID, projectID).Scan(&ok)
	return ok, err
}

func (r *PostgresRepo) Respond(ctx context.Context, inviteeID, id, status string, at time.Time) (*Invitation, error) {
	const q = `
UPDATE invitations SET status = $3, responded_at = $4
WHERE invitee_uid = $1 AND id = $2 AND status = 'pending'
RETURNING ` + invitationColumns + `;
`
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, q, inviteeID, id, status, at))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	// distinguish a missing row from one already answered
	if _, gerr := r.Get(ctx, inviteeID, id); gerr != nil {
		return nil, gerr
	}
	return nil, ErrAlreadyResponded
}
