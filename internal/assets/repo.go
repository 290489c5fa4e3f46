package assets

import (
	"context"
	"sort"
	"sync"
)

// Repository persists asset documents. The id is assigned by the caller.
type Repository interface {
	Create(ctx context.Context, a *DesignAsset) error
	Get(ctx context.Context, ownerID, clientID, id string) (*DesignAsset, error)
	List(ctx context.Context, ownerID, clientID string) ([]DesignAsset, error)
	Delete(ctx context.Context, ownerID, clientID, id string) error
}

var _ Repository = (*MemoryRepo)(nil)

type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]DesignAsset // owner/client/id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]DesignAsset)}
}

func memKey(ownerID, clientID, id string) string {
	return ownerID + "/" + clientID + "/" + id
}

func (r *MemoryRepo) Create(ctx context.Context, a *DesignAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[memKey(a.OwnerID, a.ClientID, a.ID)] = *a
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, ownerID, clientID, id string) (*DesignAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[memKey(ownerID, clientID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRepo) List(ctx context.Context, ownerID, clientID string) ([]DesignAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DesignAsset, 0)
	for _, a := range r.items {
		if a.OwnerID == ownerID && a.ClientID == clientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, ownerID, clientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memKey(ownerID, clientID, id)
	if _, ok := r.items[k]; !ok {
		return ErrNotFound
	}
	delete(r.items, k)
	return nil
}
