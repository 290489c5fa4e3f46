package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps projects in process memory. Used for tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[string]map[string]*domain.Project
	now      func() time.Time
	seq      int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]map[string]*domain.Project),
		now:      time.Now,
	}
}

func clone(p *domain.Project) *domain.Project {
	c := *p
	c.State = p.State.Clone()
	c.Collaborators = slices.Clone(p.Collaborators)
	if c.Collaborators == nil {
		c.Collaborators = []string{}
	}
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("owner id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.projects[p.OwnerID]
	if owned == nil {
		owned = make(map[string]*domain.Project)
		r.projects[p.OwnerID] = owned
	}

	for i := 0; i < maxIDAttempts; i++ {
		id, err := domain.NewPublicID(domain.IDPrefix)
		if err != nil {
			return nil, err
		}
		if _, taken := owned[id]; taken {
			continue
		}
		// Keep creation order strict even when the clock does not advance.
		r.seq++
		now := r.now().UTC().Add(time.Duration(r.seq))

		c := clone(p)
		c.ID = id
		c.Version = 1
		c.CreatedAt = now
		c.UpdatedAt = now
		owned[id] = c
		return clone(c), nil
	}
	return nil, fmt.Errorf("failed to generate unique project id")
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, id string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[ownerID][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(p), nil
}

func (r *MemoryRepository) Latest(ctx context.Context, ownerID string) (*domain.Project, error) {
	items, err := r.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &items[0], nil
}

func (r *MemoryRepository) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Project, 0, len(r.projects[ownerID]))
	for _, p := range r.projects[ownerID] {
		out = append(out, *clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[ownerID][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.IsPublic != nil {
		p.IsPublic = *patch.IsPublic
	}
	p.UpdatedAt = r.now().UTC()
	return clone(p), nil
}

func (r *MemoryRepository) SaveState(ctx context.Context, ownerID, id string, state domain.State, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[ownerID][id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if expectedVersion != domain.AnyVersion && p.Version != expectedVersion {
		return 0, domain.ErrConflict
	}
	p.State = state.Clone()
	p.Version++
	p.UpdatedAt = r.now().UTC()
	return p.Version, nil
}

func (r *MemoryRepository) AddCollaborator(ctx context.Context, ownerID, id, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[ownerID][id]
	if !ok {
		return domain.ErrNotFound
	}
	if !slices.Contains(p.Collaborators, uid) {
		p.Collaborators = append(p.Collaborators, uid)
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[ownerID][id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.projects[ownerID], id)
	return nil
}
