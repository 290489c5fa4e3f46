package assets

import (
	"context"
	"database/sql"
	"errors"
)

var _ Repository = (*PostgresRepo)(nil)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const assetColumns = `id, owner_uid, client_id, kind, url, path, prompt, content_type, size_bytes, created_at`

func scanAsset(row interface{ Scan(...any) error }) (*DesignAsset, error) {
	var (
		a    DesignAsset
		kind string
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.ClientID, &kind, &a.URL, &a.Path, &a.Prompt,
		&a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)
	return &a, nil
}

func (r *PostgresRepo) Create(ctx context.Context, a *DesignAsset) error {
	const q = `
INSERT INTO design_assets (` + assetColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.OwnerID, a.ClientID, string(a.Kind), a.URL, a.Path,
		a.Prompt, a.ContentType, a.SizeBytes, a.CreatedAt)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, ownerID, clientID, id string) (*DesignAsset, error) {
	const q = `SELECT ` + assetColumns + ` FROM design_assets WHERE owner_uid = $1 AND client_id = $2 AND id = $3;`
	a, err := scanAsset(r.db.QueryRowContext(ctx, q, ownerID, clientID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepo) List(ctx context.Context, ownerID, clientID string) ([]DesignAsset, error) {
	const q = `SELECT ` + assetColumns + ` FROM design_assets WHERE owner_uid = $1 AND client_id = $2 ORDER BY created_at DESC;`
	rows, err := r.db.QueryContext(ctx, q, ownerID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DesignAsset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, ownerID, clientID, id string) error {
	const q = `DELETE FROM design_assets WHERE owner_uid = $1 AND client_id = $2 AND id = $3;`
	res, err := r.db.ExecContext(ctx, q, ownerID, clientID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
