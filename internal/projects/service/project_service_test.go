package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/repository"
)

func TestProjectService_Create(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryRepository())
	ctx := context.Background()

	p, err := svc.Create(ctx, "u1", "  Shop  ", "")
	require.NoError(t, err)
	assert.Equal(t, "Shop", p.Name)
	assert.Equal(t, domain.TypeAnalysis, p.ProjectType)
	require.Len(t, p.History, 1)
	assert.Contains(t, p.History[0].Message, "Shop")

	_, err = svc.Create(ctx, "u1", " ", domain.TypeChat)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Create(ctx, "u1", "x", "weird")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestProjectService_GetShared(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryRepository())
	ctx := context.Background()

	p, err := svc.Create(ctx, "owner", "secret", domain.TypeChat)
	require.NoError(t, err)

	_, err = svc.GetShared(ctx, "stranger", "owner", p.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, svc.AddCollaborator(ctx, "owner", p.ID, "friend"))
	got, err := svc.GetShared(ctx, "friend", "owner", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	pub := true
	_, err = svc.Update(ctx, "owner", p.ID, domain.Patch{IsPublic: &pub})
	require.NoError(t, err)
	_, err = svc.GetShared(ctx, "stranger", "owner", p.ID)
	assert.NoError(t, err)
}

func TestProjectService_UpdateValidation(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryRepository())
	ctx := context.Background()
	p, err := svc.Create(ctx, "u1", "a", domain.TypeAnalysis)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "u1", p.ID, domain.Patch{})
	assert.ErrorIs(t, err, ErrInvalid)

	blank := "   "
	_, err = svc.Update(ctx, "u1", p.ID, domain.Patch{Name: &blank})
	assert.ErrorIs(t, err, ErrInvalid)

	name := "b"
	_, err = svc.Update(ctx, "u1", "missing", domain.Patch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectService_AppendHistory(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryRepository())
	ctx := context.Background()
	p, err := svc.Create(ctx, "u1", "a", domain.TypeAnalysis)
	require.NoError(t, err)

	require.NoError(t, svc.AppendHistory(ctx, "u1", p.ID, "changes applied"))
	got, err := svc.Get(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, "changes applied", got.History[1].Message)
	assert.Equal(t, int64(2), got.Version)
}
