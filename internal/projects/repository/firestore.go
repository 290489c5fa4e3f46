package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
)

var _ Repository = (*FirestoreRepository)(nil)

// FirestoreRepository stores projects at users/{uid}/projects/{id}.
type FirestoreRepository struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client, now: time.Now}
}

func (r *FirestoreRepository) projectsCol(ownerID string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(ownerID).Collection("projects")
}

type projectDoc struct {
	UserID              string               `firestore:"userId"`
	Name                string               `firestore:"name"`
	ProjectType         string               `firestore:"projectType"`
	IsPublic            bool                 `firestore:"isPublic"`
	Collaborators       []string             `firestore:"collaborators"`
	Version             int64                `firestore:"version"`
	CreatedAt           time.Time            `firestore:"createdAt"`
	UpdatedAt           time.Time            `firestore:"updatedAt"`
	AnalysisReport      string               `firestore:"analysisReport"`
	FrontendSuggestions *domain.Suggestion   `firestore:"frontendSuggestions"`
	BackendSuggestions  *domain.Suggestion   `firestore:"backendSuggestions"`
	History             []domain.HistoryItem `firestore:"history"`
	ChatHistory         []domain.ChatMessage `firestore:"chatHistory"`
}

func toDoc(p *domain.Project) projectDoc {
	st := p.State.Clone()
	collaborators := p.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	return projectDoc{
		UserID:              p.OwnerID,
		Name:                p.Name,
		ProjectType:         string(p.ProjectType),
		IsPublic:            p.IsPublic,
		Collaborators:       collaborators,
		Version:             p.Version,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		AnalysisReport:      st.AnalysisReport,
		FrontendSuggestions: st.FrontendSuggestions,
		BackendSuggestions:  st.BackendSuggestions,
		History:             st.History,
		ChatHistory:         st.ChatHistory,
	}
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*domain.Project, error) {
	var doc projectDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", snap.Ref.ID, err)
	}
	p := &domain.Project{
		ID:            snap.Ref.ID,
		OwnerID:       doc.UserID,
		Name:          doc.Name,
		ProjectType:   domain.ProjectType(doc.ProjectType),
		IsPublic:      doc.IsPublic,
		Collaborators: doc.Collaborators,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		State: domain.State{
			AnalysisReport:      doc.AnalysisReport,
			FrontendSuggestions: doc.FrontendSuggestions,
			BackendSuggestions:  doc.BackendSuggestions,
			History:             doc.History,
			ChatHistory:         doc.ChatHistory,
		},
	}
	p.State = p.State.Clone()
	if p.Collaborators == nil {
		p.Collaborators = []string{}
	}
	return p, nil
}

func (r *FirestoreRepository) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("owner id required")
	}

	for i := 0; i < maxIDAttempts; i++ {
		id, err := domain.NewPublicID(domain.IDPrefix)
		if err != nil {
			return nil, err
		}

		now := r.now().UTC()
		c := *p
		c.ID = id
		c.Version = 1
		c.CreatedAt = now
		c.UpdatedAt = now

		_, err = r.projectsCol(p.OwnerID).Doc(id).Create(ctx, toDoc(&c))
		if err == nil {
			c.State = c.State.Clone()
			if c.Collaborators == nil {
				c.Collaborators = []string{}
			}
			return &c, nil
		}
		if status.Code(err) == codes.AlreadyExists {
			continue
		}
		return nil, fmt.Errorf("firestore create project: %w", err)
	}
	return nil, fmt.Errorf("failed to generate unique project id")
}

func (r *FirestoreRepository) Get(ctx context.Context, ownerID, id string) (*domain.Project, error) {
	snap, err := r.projectsCol(ownerID).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore get project: %w", err)
	}
	return fromSnapshot(snap)
}

func (r *FirestoreRepository) Latest(ctx context.Context, ownerID string) (*domain.Project, error) {
	items, err := r.query(ctx, ownerID, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &items[0], nil
}

func (r *FirestoreRepository) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return r.query(ctx, ownerID, 0)
}

func (r *FirestoreRepository) query(ctx context.Context, ownerID string, limit int) ([]domain.Project, error) {
	q := r.projectsCol(ownerID).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := make([]domain.Project, 0, 16)
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore list projects: %w", err)
		}
		p, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *FirestoreRepository) Update(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Project, error) {
	updates := []firestore.Update{{Path: "updatedAt", Value: r.now().UTC()}}
	if patch.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *patch.Name})
	}
	if patch.IsPublic != nil {
		updates = append(updates, firestore.Update{Path: "isPublic", Value: *patch.IsPublic})
	}

	if _, err := r.projectsCol(ownerID).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore update project: %w", err)
	}
	return r.Get(ctx, ownerID, id)
}

func (r *FirestoreRepository) SaveState(ctx context.Context, ownerID, id string, state domain.State, expectedVersion int64) (int64, error) {
	ref := r.projectsCol(ownerID).Doc(id)
	st := state.Clone()

	var version int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt("version")
		if err != nil {
			return err
		}
		cv, _ := current.(int64)
		if expectedVersion != domain.AnyVersion && cv != expectedVersion {
			return domain.ErrConflict
		}
		version = cv + 1

		// Field-level updates leave name, visibility and collaborators untouched.
		return tx.Update(ref, []firestore.Update{
			{Path: "analysisReport", Value: st.AnalysisReport},
			{Path: "frontendSuggestions", Value: st.FrontendSuggestions},
			{Path: "backendSuggestions", Value: st.BackendSuggestions},
			{Path: "history", Value: st.History},
			{Path: "chatHistory", Value: st.ChatHistory},
			{Path: "version", Value: version},
			{Path: "updatedAt", Value: r.now().UTC()},
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return 0, err
		}
		if status.Code(err) == codes.NotFound {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("firestore save project state: %w", err)
	}
	return version, nil
}

func (r *FirestoreRepository) AddCollaborator(ctx context.Context, ownerID, id, uid string) error {
	_, err := r.projectsCol(ownerID).Doc(id).Update(ctx, []firestore.Update{
		{Path: "collaborators", Value: firestore.ArrayUnion(uid)},
		{Path: "updatedAt", Value: r.now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		return fmt.Errorf("firestore add collaborator: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := r.projectsCol(ownerID).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		return fmt.Errorf("firestore delete project: %w", err)
	}
	return nil
}
