// Package workspace keeps the active project of a user session in memory and
// writes its mutable fields back to the project store in the background.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
)

// Concurrency selects how background writes treat concurrent edits.
type Concurrency string

const (
	Optimistic    Concurrency = "optimistic"
	LastWriteWins Concurrency = "last_write_wins"
)

// ErrNoProject is returned by mutators that need an active project.
var ErrNoProject = errors.New("no active project")

// Snapshot is a copy of the store's state at one revision.
type Snapshot struct {
	ProjectID   string             `json:"projectId,omitempty"`
	ProjectName string             `json:"projectName,omitempty"`
	ProjectType domain.ProjectType `json:"projectType,omitempty"`
	Version     int64              `json:"version"`
	Revision    uint64             `json:"revision"`
	Dirty       bool               `json:"dirty"`
	SaveError   string             `json:"saveError,omitempty"`
	domain.State
}

// Store owns the in-memory mirror of one session's active project.
// All mutators apply under a single mutex, so they take effect in call order.
type Store struct {
	uid      string
	projects *service.ProjectService
	mode     Concurrency
	now      func() time.Time

	mu           sync.Mutex
	projectID    string
	projectName  string
	projectType  domain.ProjectType
	version      int64
	state        domain.State
	gen          uint64 // bumped whenever a different project is loaded or cleared
	rev          uint64
	persistedRev uint64
	saveErr      error
	subs         map[int]func(Snapshot)
	nextSub      int

	notifyMu     sync.Mutex
	lastNotified uint64

	persistMu sync.Mutex

	signal    chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewStore starts the background persister. Call Close to stop it.
func NewStore(uid string, projects *service.ProjectService, mode Concurrency) *Store {
	if mode == "" {
		mode = Optimistic
	}
	s := &Store{
		uid:      uid,
		projects: projects,
		mode:     mode,
		now:      time.Now,
		state:    domain.State{}.Clone(),
		subs:     make(map[int]func(Snapshot)),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Store) UserID() string { return s.uid }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		ProjectID:   s.projectID,
		ProjectName: s.projectName,
		ProjectType: s.projectType,
		Version:     s.version,
		Revision:    s.rev,
		Dirty:       s.rev != s.persistedRev,
		State:       s.state.Clone(),
	}
	if s.saveErr != nil {
		snap.SaveError = s.saveErr.Error()
	}
	return snap
}

// Subscribe registers fn to receive a snapshot after every change.
// fn runs synchronously on the mutating goroutine and must not call back into the store.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// notify delivers snap unless a newer revision has already gone out. Save
// errors reuse the revision of the state they failed to write.
func (s *Store) notify(snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.Revision < s.lastNotified {
		return
	}
	s.lastNotified = snap.Revision

	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// load replaces the whole state with p (or empty when p is nil) and marks it
// as already persisted so the load itself never triggers a write.
func (s *Store) loadLocked(p *domain.Project) {
	s.gen++
	s.rev++
	s.persistedRev = s.rev
	s.saveErr = nil
	if p == nil {
		s.projectID, s.projectName, s.projectType, s.version = "", "", "", 0
		s.state = domain.State{}.Clone()
		return
	}
	s.projectID = p.ID
	s.projectName = p.Name
	s.projectType = p.ProjectType
	s.version = p.Version
	s.state = p.State.Clone()
}

// LoadLatest loads the most recently created project of the user. No project
// leaves the store empty and is not an error.
func (s *Store) LoadLatest(ctx context.Context) error {
	p, err := s.projects.Latest(ctx, s.uid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load latest project: %w", err)
	}

	s.mu.Lock()
	s.loadLocked(p)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// SetProjectID persists pending changes of the current project and switches to id.
func (s *Store) SetProjectID(ctx context.Context, id string) error {
	p, err := s.projects.Get(ctx, s.uid, id)
	if err != nil {
		return err
	}
	s.flushBeforeSwitch(ctx)

	s.mu.Lock()
	s.loadLocked(p)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// CreateProject creates a new project document and makes it active.
func (s *Store) CreateProject(ctx context.Context, name string, projectType domain.ProjectType) (*domain.Project, error) {
	p, err := s.projects.Create(ctx, s.uid, name, projectType)
	if err != nil {
		return nil, err
	}
	s.flushBeforeSwitch(ctx)

	s.mu.Lock()
	s.loadLocked(p)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return p, nil
}

func (s *Store) flushBeforeSwitch(ctx context.Context) {
	if err := s.Flush(ctx); err != nil {
		logging.FromContext(ctx).LogWarnf("workspace_switch", "pending changes of previous project not saved: %v", err)
	}
}

// ClearState resets every field, including the active project, to empty.
func (s *Store) ClearState() {
	s.mu.Lock()
	s.loadLocked(nil)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// ClearIfProject clears the store when it shows projectID. Used after a delete.
func (s *Store) ClearIfProject(projectID string) bool {
	s.mu.Lock()
	if s.projectID == "" || s.projectID != projectID {
		s.mu.Unlock()
		return false
	}
	s.loadLocked(nil)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Store) mutate(fn func(st *domain.State)) {
	s.mu.Lock()
	fn(&s.state)
	s.rev++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	s.wake()
}

func (s *Store) SetAnalysisReport(report string) {
	s.mutate(func(st *domain.State) { st.AnalysisReport = report })
}

// SetFrontendSuggestions overwrites the frontend suggestion; nil clears it.
func (s *Store) SetFrontendSuggestions(sg *domain.Suggestion) {
	s.mutate(func(st *domain.State) { st.FrontendSuggestions = cloneSuggestion(sg) })
}

func (s *Store) SetBackendSuggestions(sg *domain.Suggestion) {
	s.mutate(func(st *domain.State) { st.BackendSuggestions = cloneSuggestion(sg) })
}

// AddHistory appends an activity entry stamped with the current time.
func (s *Store) AddHistory(message string) domain.HistoryItem {
	item := domain.NewHistoryItem(message, s.now())
	s.mutate(func(st *domain.State) { st.History = append(st.History, item) })
	return item
}

// AddHistoryIfProject appends an entry only while the store shows projectID.
func (s *Store) AddHistoryIfProject(projectID, message string) bool {
	item := domain.NewHistoryItem(message, s.now())
	s.mu.Lock()
	if s.projectID == "" || s.projectID != projectID {
		s.mu.Unlock()
		return false
	}
	s.state.History = append(s.state.History, item)
	s.rev++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	s.wake()
	return true
}

func (s *Store) AddChatMessage(msg domain.ChatMessage) error {
	msg.Role = strings.TrimSpace(msg.Role)
	if msg.Role != domain.RoleUser && msg.Role != domain.RoleModel {
		return fmt.Errorf("%w: role must be %q or %q", service.ErrInvalid, domain.RoleUser, domain.RoleModel)
	}
	s.mutate(func(st *domain.State) { st.ChatHistory = append(st.ChatHistory, msg) })
	return nil
}

func cloneSuggestion(sg *domain.Suggestion) *domain.Suggestion {
	if sg == nil {
		return nil
	}
	cp := *sg
	return &cp
}

func (s *Store) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
		// a write is already pending and will pick up this revision
	}
}

func (s *Store) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
			if err := s.persist(context.Background()); err != nil && !errors.Is(err, ErrNoProject) {
				logging.L().Warn("workspace save failed",
					zap.String("uid", s.uid), zap.Error(err))
			}
		}
	}
}

// Flush writes pending changes synchronously.
func (s *Store) Flush(ctx context.Context) error {
	err := s.persist(ctx)
	if errors.Is(err, ErrNoProject) {
		return nil
	}
	return err
}

// persist writes the mutable subset when the store has unpersisted revisions.
// Failures are recorded on the snapshot and not retried.
func (s *Store) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.rev == s.persistedRev {
		s.mu.Unlock()
		return nil
	}
	if s.projectID == "" {
		s.mu.Unlock()
		return ErrNoProject
	}
	id, gen, rev := s.projectID, s.gen, s.rev
	state := s.state.Clone()
	expected := s.version
	if s.mode == LastWriteWins {
		expected = domain.AnyVersion
	}
	s.mu.Unlock()

	version, err := s.projects.Repository().SaveState(ctx, s.uid, id, state, expected)

	s.mu.Lock()
	if s.gen != gen {
		// the project changed while the write was in flight
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.saveErr = err
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return fmt.Errorf("save project %s: %w", id, err)
	}
	s.version = version
	s.persistedRev = rev
	s.saveErr = nil
	s.mu.Unlock()
	return nil
}

// Close flushes pending changes and stops the persister. It is safe to call twice.
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped
		err = s.Flush(ctx)
	})
	return err
}
