package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
)

const keySep = "|"

type RegistryOptions struct {
	Concurrency Concurrency
	// SessionTTL evicts sessions idle for longer; evicted stores are flushed.
	SessionTTL time.Duration
	// CleanupInterval runs the eviction janitor; zero disables it.
	CleanupInterval time.Duration
}

// Registry maps (uid, session) pairs to live stores.
type Registry struct {
	projects *service.ProjectService
	opts     RegistryOptions

	mu       sync.Mutex
	sessions *cache.Cache
	loads    singleflight.Group
}

func NewRegistry(projects *service.ProjectService, opts RegistryOptions) *Registry {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	r := &Registry{
		projects: projects,
		opts:     opts,
		sessions: cache.New(opts.SessionTTL, opts.CleanupInterval),
	}
	r.sessions.OnEvicted(func(key string, v interface{}) {
		if st, ok := v.(*Store); ok {
			r.closeStore(key, st)
		}
	})
	return r
}

func sessionKey(uid, sessionID string) string {
	return uid + keySep + sessionID
}

func (r *Registry) closeStore(key string, st *Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.Close(ctx); err != nil {
		logging.L().Warn("workspace flush on eviction failed", zap.String("session", key), zap.Error(err))
	}
}

// Get returns the session's store, creating and loading it on first use.
// Every access extends the idle deadline. Concurrent first loads of the same
// session share one load; different sessions load in parallel.
func (r *Registry) Get(ctx context.Context, uid, sessionID string) (*Store, error) {
	key := sessionKey(uid, sessionID)
	if st, ok := r.touch(key); ok {
		return st, nil
	}

	v, err, _ := r.loads.Do(key, func() (interface{}, error) {
		if st, ok := r.touch(key); ok {
			return st, nil
		}
		// An expired entry may still sit in the cache; evict it so it gets
		// flushed before the fresh load reads the project.
		r.mu.Lock()
		r.sessions.DeleteExpired()
		r.mu.Unlock()

		st := NewStore(uid, r.projects, r.opts.Concurrency)
		if err := st.LoadLatest(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, err
		}

		r.mu.Lock()
		r.sessions.SetDefault(key, st)
		r.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

func (r *Registry) touch(key string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.sessions.Get(key)
	if !ok {
		return nil, false
	}
	st := v.(*Store)
	r.sessions.SetDefault(key, st)
	return st, true
}

// Lookup returns the store without creating one.
func (r *Registry) Lookup(uid, sessionID string) (*Store, bool) {
	v, ok := r.sessions.Get(sessionKey(uid, sessionID))
	if !ok {
		return nil, false
	}
	return v.(*Store), true
}

// ClearProject clears every session of uid that shows projectID.
func (r *Registry) ClearProject(uid, projectID string) int {
	prefix := uid + keySep
	n := 0
	for key, item := range r.sessions.Items() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if st, ok := item.Object.(*Store); ok && st.ClearIfProject(projectID) {
			n++
		}
	}
	return n
}

// AppendHistory adds message to one live session of uid showing projectID,
// so the entry goes out with that session's next write. It reports false when
// no session has the project open.
func (r *Registry) AppendHistory(uid, projectID, message string) bool {
	prefix := uid + keySep
	for key, item := range r.sessions.Items() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if st, ok := item.Object.(*Store); ok && st.AddHistoryIfProject(projectID, message) {
			return true
		}
	}
	return false
}

// Sweep evicts idle sessions now.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.DeleteExpired()
}

func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}

// Close flushes and stops every store. Used on shutdown.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions.DeleteExpired()

	var firstErr error
	for key, item := range r.sessions.Items() {
		st, ok := item.Object.(*Store)
		if !ok {
			continue
		}
		if err := st.Close(ctx); err != nil {
			logging.L().Warn("workspace flush on shutdown failed", zap.String("session", key), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.sessions.Flush()
	return firstErr
}
