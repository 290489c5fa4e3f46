package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aetherium-labs/aetherium-backend/config"
	"github.com/aetherium-labs/aetherium-backend/internal/storage/postgres"
)

// OpenDB connects to Postgres and applies the schema when DB_MIGRATE is set.
// The pool serves pgx callers; the *sql.DB view over it serves the rest.
func OpenDB(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, *sql.DB, error) {
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	db := postgres.NewConnection(pool)

	if cfg.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
	}
	return pool, db, nil
}
