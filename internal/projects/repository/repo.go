package repository

import (
	"context"

	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
)

// maxIDAttempts bounds retries when a generated public ID collides.
const maxIDAttempts = 5

// Repository persists projects under their owner.
// Implementations return domain.ErrNotFound for missing documents and
// domain.ErrConflict when SaveState's expected version does not match.
type Repository interface {
	// Create assigns an ID, timestamps and version 1.
	Create(ctx context.Context, p *domain.Project) (*domain.Project, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Project, error)
	// Latest returns the most recently created project of the owner.
	Latest(ctx context.Context, ownerID string) (*domain.Project, error)
	// List returns the owner's projects, newest first.
	List(ctx context.Context, ownerID string) ([]domain.Project, error)
	Update(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Project, error)
	// SaveState merges the mutable subset into the document, leaving other
	// fields intact, and returns the new version. Pass domain.AnyVersion to
	// skip the version check.
	SaveState(ctx context.Context, ownerID, id string, state domain.State, expectedVersion int64) (int64, error)
	AddCollaborator(ctx context.Context, ownerID, id, uid string) error
	Delete(ctx context.Context, ownerID, id string) error
}
