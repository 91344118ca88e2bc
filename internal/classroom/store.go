package classroom

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/hadikhanhk786/live-class/pkg/interfaces"
)

// Store owns every live Session, keyed by classroom name. Sessions are
// created lazily on first join and kept for the process lifetime; there
// is deliberately no eviction.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	directory interfaces.ClassDirectory
	history   interfaces.HistoryStore
}

// NewStore creates a session store backed by the given directory and
// durable history store.
func NewStore(directory interfaces.ClassDirectory, history interfaces.HistoryStore) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		directory: directory,
		history:   history,
	}
}

// GetOrCreate returns the live session for classroom, creating it on
// first call. Creation validates the classroom against the directory
// (failing with ErrClassroomNotFound if absent) and seeds the in-memory
// history from the durable store. The store mutex is held across the
// seed queries; creation happens once per classroom so this never
// becomes a steady-state contention point.
func (st *Store) GetOrCreate(ctx context.Context, classroom string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.sessions[classroom]; ok {
		return sess, nil
	}

	exists, err := st.directory.Exists(ctx, classroom)
	if err != nil {
		return nil, fmt.Errorf("classroom existence check failed: %w", err)
	}
	if !exists {
		return nil, ErrClassroomNotFound
	}

	seed, err := st.history.LoadHistory(ctx, classroom)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", classroom, err)
	}

	sess := newSession(classroom, seed)
	st.sessions[classroom] = sess
	log.Printf("Created session: classroom=%s seeded_events=%d", classroom, len(seed))
	return sess, nil
}

// Get returns the live session for classroom if one has been created.
func (st *Store) Get(classroom string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[classroom]
	return sess, ok
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
