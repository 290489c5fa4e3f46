package invitations

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Repository interface {
	Create(ctx context.Context, inv *Invitation) error
	Get(ctx context.Context, inviteeID, id string) (*Invitation, error)
	// List returns the invitee's invitations, newest first.
	List(ctx context.Context, inviteeID string) ([]Invitation, error)
	HasPending(ctx context.Context, inviteeID, ownerID, projectID string) (bool, error)
	// Respond moves a pending invitation to status; anything else is ErrAlreadyResponded.
	Respond(ctx context.Context, inviteeID, id, status string, at time.Time) (*Invitation, error)
}

var _ Repository = (*MemoryRepo)(nil)

type MemoryRepo struct {
	mu    sync.Mutex
	items map[string]Invitation // inviteeID/id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Invitation)}
}

func (r *MemoryRepo) Create(ctx context.Context, inv *Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[inv.InviteeID+"/"+inv.ID] = *inv
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, inviteeID, id string) (*Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.items[inviteeID+"/"+id]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (r *MemoryRepo) List(ctx context.Context, inviteeID string) ([]Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invitation, 0)
	for _, inv := range r.items {
		if inv.InviteeID == inviteeID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) HasPending(ctx context.Context, inviteeID, ownerID, projectID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.items {
		if inv.InviteeID == inviteeID && inv.OwnerID == ownerID && inv.ProjectID == projectID && inv.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) Respond(ctx context.Context, inviteeID, id, status string, at time.Time) (*Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := inviteeID + "/" + id
	inv, ok := r.items[k]
	if !ok {
		return nil, ErrNotFound
	}
	if inv.Status != StatusPending {
		return nil, ErrAlreadyResponded
	}
	inv.Status = status
	inv.RespondedAt = &at
	r.items[k] = inv
	return &inv, nil
}
