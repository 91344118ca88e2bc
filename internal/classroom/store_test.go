package classroom

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hadikhanhk786/live-class/pkg/types"
)

// fakeDirectory is an in-memory ClassDirectory for tests.
type fakeDirectory struct {
	mu      sync.Mutex
	classes map[string]bool
	err     error
}

func newFakeDirectory(classes ...string) *fakeDirectory {
	d := &fakeDirectory{classes: make(map[string]bool)}
	for _, c := range classes {
		d.classes[c] = true
	}
	return d
}

func (d *fakeDirectory) Exists(ctx context.Context, classroom string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.classes[classroom], nil
}

func (d *fakeDirectory) CreateClass(ctx context.Context, classroom string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classes[classroom] = true
	return nil
}

func (d *fakeDirectory) ListClasses(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for c := range d.classes {
		names = append(names, c)
	}
	return names, nil
}

// fakeHistory is an in-memory HistoryStore recording appended events.
type fakeHistory struct {
	mu       sync.Mutex
	seed     map[string][]*types.Event
	appended []*types.Event
	err      error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{seed: make(map[string][]*types.Event)}
}

func (h *fakeHistory) Append(ctx context.Context, event *types.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.appended = append(h.appended, event)
	return nil
}

func (h *fakeHistory) LoadHistory(ctx context.Context, classroom string) ([]*types.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	return append([]*types.Event{}, h.seed[classroom]...), nil
}

func (h *fakeHistory) Close() error { return nil }

func (h *fakeHistory) appendedEvents() []*types.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*types.Event{}, h.appended...)
}

func (h *fakeHistory) appendedKinds() []string {
	var kinds []string
	for _, e := range h.appendedEvents() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestStoreGetOrCreateUnknownClassroom(t *testing.T) {
	store := NewStore(newFakeDirectory(), newFakeHistory())

	_, err := store.GetOrCreate(context.Background(), "ghost")
	if err != ErrClassroomNotFound {
		t.Fatalf("expected ErrClassroomNotFound, got %v", err)
	}
	if store.Count() != 0 {
		t.Error("failed creation must not leave a session behind")
	}
}

func TestStoreGetOrCreateSeedsHistory(t *testing.T) {
	history := newFakeHistory()
	history.seed["math"] = []*types.Event{
		{ID: "1", Classroom: "math", Kind: types.KindChat, Message: "earlier"},
	}
	store := NewStore(newFakeDirectory("math"), history)

	sess, err := store.GetOrCreate(context.Background(), "math")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if len(sess.history) != 1 || sess.history[0].Message != "earlier" {
		t.Errorf("session not seeded from durable history: %+v", sess.history)
	}
}

func TestStoreGetOrCreateReturnsSameSession(t *testing.T) {
	store := NewStore(newFakeDirectory("math"), newFakeHistory())

	first, err := store.GetOrCreate(context.Background(), "math")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := store.GetOrCreate(context.Background(), "math")
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if first != second {
		t.Error("same classroom must map to the same session instance")
	}
	if store.Count() != 1 {
		t.Errorf("session count = %d, want 1", store.Count())
	}

	got, ok := store.Get("math")
	if !ok || got != first {
		t.Error("Get did not return the live session")
	}
	if _, ok := store.Get("physics"); ok {
		t.Error("Get must not create sessions")
	}
}

func TestStoreGetOrCreatePropagatesStorageErrors(t *testing.T) {
	dir := newFakeDirectory("math")
	dir.err = errors.New("disk gone")
	store := NewStore(dir, newFakeHistory())

	if _, err := store.GetOrCreate(context.Background(), "math"); err == nil {
		t.Fatal("expected directory error to propagate")
	}

	history := newFakeHistory()
	history.err = errors.New("load failed")
	store = NewStore(newFakeDirectory("math"), history)

	if _, err := store.GetOrCreate(context.Background(), "math"); err == nil {
		t.Fatal("expected history load error to propagate")
	}
	if store.Count() != 0 {
		t.Error("failed seed must not leave a session behind")
	}
}
