package invitations

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
)

type Service struct {
	repo     Repository
	projects *service.ProjectService
	resolver Resolver
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository, projects *service.ProjectService, resolver Resolver) *Service {
	return &Service{
		repo:     repo,
		projects: projects,
		resolver: resolver,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Invite creates a pending invitation for the user registered under email.
func (s *Service) Invite(ctx context.Context, ownerID, projectID, email string) (*Invitation, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalid)
	}

	p, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	inviteeID, err := s.resolver.ResolveUID(ctx, email)
	if err != nil {
		return nil, err
	}
	if inviteeID == ownerID {
		return nil, fmt.Errorf("%w: cannot invite yourself", ErrInvalid)
	}
	if slices.Contains(p.Collaborators, inviteeID) {
		return nil, fmt.Errorf("%w: already a collaborator", ErrInvalid)
	}

	pending, err := s.repo.HasPending(ctx, inviteeID, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicate
	}

	inv := &Invitation{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ProjectName:  p.Name,
		OwnerID:      ownerID,
		InviteeID:    inviteeID,
		InviteeEmail: email,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).LogInfof("invite", "invitation %s: %s invited %s to %s", inv.ID, ownerID, inviteeID, projectID)
	return inv, nil
}

func (s *Service) List(ctx context.Context, inviteeID string) ([]Invitation, error) {
	return s.repo.List(ctx, inviteeID)
}

// Accept adds the invitee as a collaborator and then marks the invitation.
// AddCollaborator is idempotent, so a failed status write can be retried.
func (s *Service) Accept(ctx context.Context, inviteeID, id string) (*Invitation, error) {
	inv, err := s.repo.Get(ctx, inviteeID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPending {
		return nil, ErrAlreadyResponded
	}
	if err := s.projects.AddCollaborator(ctx, inv.OwnerID, inv.ProjectID, inviteeID); err != nil {
		return nil, err
	}
	return s.repo.Respond(ctx, inviteeID, id, StatusAccepted, s.now().UTC())
}

func (s *Service) Decline(ctx context.Context, inviteeID, id string) (*Invitation, error) {
	return s.repo.Respond(ctx, inviteeID, id, StatusDeclined, s.now().UTC())
}
