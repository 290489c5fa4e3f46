// Package actions holds the server-side operations invoked directly by the UI
// that go beyond plain CRUD.
package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/aetherium-labs/aetherium-backend/internal/events"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
)

// Workspaces reaches the in-memory sessions that may be showing a project.
type Workspaces interface {
	ClearProject(uid, projectID string) int
	AppendHistory(uid, projectID, message string) bool
}

type Service struct {
	projects   *service.ProjectService
	bus        events.Bus
	workspaces Workspaces
}

const historyChangesApplied = "Changes applied"

func New(projects *service.ProjectService, bus events.Bus, workspaces Workspaces) *Service {
	return &Service{projects: projects, bus: bus, workspaces: workspaces}
}

// DeleteProject removes the project document and then tells the user's other
// sessions to refresh. The signal is best effort and not atomic with the delete.
func (s *Service) DeleteProject(ctx context.Context, uid, projectID string) error {
	log := logging.FromContext(ctx)

	if err := s.projects.Delete(ctx, uid, projectID); err != nil {
		return err
	}

	if s.workspaces != nil {
		if n := s.workspaces.ClearProject(uid, projectID); n > 0 {
			log.LogInfof("delete_project", "cleared %d workspace(s) showing project %s", n, projectID)
		}
	}

	if s.bus != nil {
		ev := events.Event{Type: events.TypeProjectDeleted, UserID: uid, ProjectID: projectID}
		if err := s.bus.Publish(ctx, ev); err != nil {
			log.LogWarnf("delete_project", "revalidation signal for %s not sent: %v", projectID, err)
		}
	}
	return nil
}

// ApplyChanges is a handoff point only: it records that changes were requested.
// Nothing is written to any filesystem. An open session records the entry
// itself so its next write does not conflict with this one.
func (s *Service) ApplyChanges(ctx context.Context, uid, projectID, changes string) error {
	changes = strings.TrimSpace(changes)
	if changes == "" {
		return fmt.Errorf("%w: changes required", service.ErrInvalid)
	}

	logging.FromContext(ctx).LogInfof("apply_changes", "apply requested for project %s (%d bytes)", projectID, len(changes))
	if _, err := s.projects.Get(ctx, uid, projectID); err != nil {
		return err
	}
	if s.workspaces != nil && s.workspaces.AppendHistory(uid, projectID, historyChangesApplied) {
		return nil
	}
	return s.projects.AppendHistory(ctx, uid, projectID, historyChangesApplied)
}
