package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/repository"
)

// ErrInvalid marks bad caller input.
var ErrInvalid = errors.New("invalid project request")

// ProjectService handles project-related business logic
type ProjectService struct {
	repo repository.Repository
	now  func() time.Time
}

// NewProjectService creates a new project service
func NewProjectService(repo repository.Repository) *ProjectService {
	return &ProjectService{repo: repo, now: time.Now}
}

// Repository exposes the underlying store for components that sync state directly.
func (s *ProjectService) Repository() repository.Repository {
	return s.repo
}

// Create starts a new analysis or chat project with an initial history entry.
func (s *ProjectService) Create(ctx context.Context, ownerID, name string, projectType domain.ProjectType) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if projectType == "" {
		projectType = domain.TypeAnalysis
	}
	if !projectType.Valid() {
		return nil, fmt.Errorf("%w: unknown project type %q", ErrInvalid, projectType)
	}

	p := &domain.Project{
		OwnerID:       ownerID,
		Name:          name,
		ProjectType:   projectType,
		Collaborators: []string{},
		State: domain.State{
			History: []domain.HistoryItem{domain.NewHistoryItem(fmt.Sprintf("Project %q created", name), s.now())},
		},
	}
	return s.repo.Create(ctx, p)
}

// List returns all projects for a user, newest first.
func (s *ProjectService) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return s.repo.List(ctx, ownerID)
}

func (s *ProjectService) Get(ctx context.Context, ownerID, id string) (*domain.Project, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// Latest returns the most recently created project of the user.
func (s *ProjectService) Latest(ctx context.Context, ownerID string) (*domain.Project, error) {
	return s.repo.Latest(ctx, ownerID)
}

// Update renames a project or changes its visibility.
func (s *ProjectService) Update(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Project, error) {
	if patch.Name == nil && patch.IsPublic == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalid)
	}
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		if n == "" {
			return nil, fmt.Errorf("%w: name required", ErrInvalid)
		}
		patch.Name = &n
	}
	return s.repo.Update(ctx, ownerID, id, patch)
}

// GetShared returns another user's project if it is public or shared with viewerID.
func (s *ProjectService) GetShared(ctx context.Context, viewerID, ownerID, id string) (*domain.Project, error) {
	p, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !p.CanRead(viewerID) {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

// AddCollaborator grants uid read access to the project.
func (s *ProjectService) AddCollaborator(ctx context.Context, ownerID, id, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: collaborator uid required", ErrInvalid)
	}
	return s.repo.AddCollaborator(ctx, ownerID, id, uid)
}

// Delete removes the project document.
func (s *ProjectService) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// AppendHistory records an entry outside of a workspace session.
func (s *ProjectService) AppendHistory(ctx context.Context, ownerID, id, message string) error {
	p, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	st := p.State.Clone()
	st.History = append(st.History, domain.NewHistoryItem(message, s.now()))
	_, err = s.repo.SaveState(ctx, ownerID, id, st, p.Version)
	return err
}
