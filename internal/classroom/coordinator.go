package classroom

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hadikhanhk786/live-class/pkg/interfaces"
	"github.com/hadikhanhk786/live-class/pkg/types"
)

// Coordinator is the facade over the session store, binding registry and
// event log. It exposes every state-mutating classroom operation and
// guarantees that operations on one classroom are serialized: each
// operation holds the session mutex across the state mutation, the
// in-memory history append, the persistence enqueue and the broadcast
// enqueue. The actual network writes and durable-store writes happen on
// their own goroutines and are never awaited inside the critical section.
type Coordinator struct {
	store    *Store
	registry *Registry
	history  interfaces.HistoryStore
	limiter  *rateLimiter
}

// JoinResult is returned to a successfully joined connection: the
// membership snapshot, the full event history (including the caller's own
// join event) and the current lifecycle state.
type JoinResult struct {
	Presence  *types.Presence
	History   []*types.Event
	Lifecycle string
}

// ClassSnapshot is a point-in-time view of one classroom for read-only
// callers such as the REST API.
type ClassSnapshot struct {
	Classroom string          `json:"classroom"`
	Lifecycle string          `json:"lifecycle"`
	Presence  *types.Presence `json:"presence"`
}

// NewCoordinator creates a coordinator. chatLimit messages per chatWindow
// are allowed per username before ChatMessage fails with ErrRateLimited.
func NewCoordinator(store *Store, registry *Registry, history interfaces.HistoryStore, chatLimit int, chatWindow time.Duration) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
		history:  history,
		limiter:  newRateLimiter(chatLimit, chatWindow),
	}
}

// Join binds conn to classroom as (username, role), admits the user and
// records a user_join system event. Students are refused with
// ErrClassNotStarted while the class is not active, before any binding is
// created. Joining a classroom the directory does not know fails with
// ErrClassroomNotFound.
func (c *Coordinator) Join(ctx context.Context, conn interfaces.Connection, username, role, classroom string) (*JoinResult, error) {
	if !types.IsValidRole(role) {
		return nil, types.ErrInvalidRole
	}

	sess, err := c.store.GetOrCreate(ctx, classroom)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Admission is checked before the binding exists, so a refused join
	// leaves no trace in the registry.
	if err := sess.admit(username, role); err != nil {
		return nil, err
	}

	c.registry.Bind(conn, username, role, classroom)
	c.record(sess, systemEvent(classroom, types.KindUserJoin, fmt.Sprintf("%s has joined the class", username)))
	c.broadcastPresence(sess)

	return &JoinResult{
		Presence:  sess.presence(),
		History:   sess.historySnapshot(),
		Lifecycle: sess.lifecycle,
	}, nil
}

// Leave removes the binding for connID and its presence entry, recording
// a user_leave event. No-op if the connection is not bound.
func (c *Coordinator) Leave(connID string) {
	c.detach(connID, types.KindUserLeave, "has left the class")
}

// Disconnect handles a transport-level disconnect notification. Same as
// Leave but recorded as user_disconnect.
func (c *Coordinator) Disconnect(connID string) {
	c.detach(connID, types.KindUserDisconnect, "has disconnected")
}

func (c *Coordinator) detach(connID, kind, suffix string) {
	b, ok := c.registry.Get(connID)
	if !ok {
		return
	}

	sess, ok := c.store.Get(b.Classroom)
	if !ok {
		c.registry.Unbind(connID)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Re-check under the session lock; a concurrent rebind for the same
	// username may have already taken over this connection's slot.
	b, ok = c.registry.Unbind(connID)
	if !ok {
		return
	}

	sess.dismiss(b.Username)
	c.record(sess, systemEvent(b.Classroom, kind, fmt.Sprintf("%s %s", b.Username, suffix)))
	c.broadcastPresence(sess)

	c.limiter.cleanup()
}

// ChatMessage records a chat event authored by the user bound to connID
// and broadcasts it to the classroom.
func (c *Coordinator) ChatMessage(connID, text string) error {
	b, ok := c.registry.Get(connID)
	if !ok {
		return ErrNotBound
	}
	if err := types.ValidateChatText(text); err != nil {
		return err
	}

	sess, ok := c.store.Get(b.Classroom)
	if !ok {
		return ErrNotBound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !c.limiter.allow(b.Username) {
		return ErrRateLimited
	}

	c.record(sess, &types.Event{
		ID:        uuid.New().String(),
		Classroom: b.Classroom,
		Username:  b.Username,
		Role:      b.Role,
		Kind:      types.KindChat,
		Message:   text,
		Timestamp: time.Now(),
	})
	return nil
}

// StartClass transitions the caller's classroom to Active and records a
// class_start event. Only teacher bindings may start class. Re-starting
// an already active class is a no-op and emits nothing.
func (c *Coordinator) StartClass(connID string) error {
	b, sess, err := c.teacherSession(connID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.start() {
		return nil
	}

	c.record(sess, systemEvent(b.Classroom, types.KindClassStart, "Class has started"))
	c.broadcast(b.Classroom, &types.ServerMessage{Type: types.ServerTypeClassStarted})
	return nil
}

// EndClass transitions the caller's classroom to Inactive, records a
// class_end event and enqueues a dedicated class_ended signal to every
// bound student connection. Students stay in the presence set; the signal
// is advisory eviction, not removal. Ending a class that is not in
// session is a no-op.
func (c *Coordinator) EndClass(connID string) error {
	b, sess, err := c.teacherSession(connID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.end() {
		return nil
	}

	c.record(sess, systemEvent(b.Classroom, types.KindClassEnd, "Class has ended"))

	signal := &types.ServerMessage{Type: types.ServerTypeClassEnded}
	for _, conn := range c.registry.StudentConnections(b.Classroom) {
		if err := conn.SendJSON(signal); err != nil {
			log.Printf("Failed to signal class end to connection %s: %v", conn.ID(), err)
		}
	}
	return nil
}

// RemoveUser dismisses target from the caller's classroom, records a
// user_removed event, and — if the target is currently bound — sends it a
// distinct removed signal, unbinds it and closes its connection. The
// close only signals the target's writer goroutine, so a connection can
// be evicted mid-operation (or evict itself) without deadlock. No-op if
// the target is not present.
func (c *Coordinator) RemoveUser(connID, target string) error {
	b, sess, err := c.teacherSession(connID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	_, present := sess.memberRole(target)
	targetConn, bound := c.registry.Lookup(b.Classroom, target)
	if !present && !bound {
		return nil
	}

	sess.dismiss(target)
	c.record(sess, systemEvent(b.Classroom, types.KindUserRemoved, fmt.Sprintf("%s has been removed from the class", target)))
	c.broadcastPresence(sess)

	if bound {
		if err := targetConn.SendJSON(&types.ServerMessage{Type: types.ServerTypeRemoved}); err != nil {
			log.Printf("Failed to signal removal to %s: %v", target, err)
		}
		c.registry.Unbind(targetConn.ID())
		if err := targetConn.Close(); err != nil {
			log.Printf("Failed to close removed connection for %s: %v", target, err)
		}
	}
	return nil
}

// FileUploaded records a file_uploaded system event for the classroom the
// caller is bound to and broadcasts it.
func (c *Coordinator) FileUploaded(connID string, file types.FileInfo) error {
	return c.fileEvent(connID, types.KindFileUploaded, "uploaded", file)
}

// FileDownloaded records a file_downloaded system event.
func (c *Coordinator) FileDownloaded(connID string, file types.FileInfo) error {
	return c.fileEvent(connID, types.KindFileDownloaded, "downloaded", file)
}

// AssignmentSubmitted records an assignment_submitted system event.
func (c *Coordinator) AssignmentSubmitted(connID string, file types.FileInfo) error {
	return c.fileEvent(connID, types.KindAssignmentSubmitted, "submitted assignment:", file)
}

func (c *Coordinator) fileEvent(connID, kind, verb string, file types.FileInfo) error {
	b, ok := c.registry.Get(connID)
	if !ok {
		return ErrNotBound
	}
	sess, ok := c.store.Get(b.Classroom)
	if !ok {
		return ErrNotBound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	event := systemEvent(b.Classroom, kind, fmt.Sprintf("%s %s %s", b.Username, verb, file.Name))
	event.File = &file
	c.record(sess, event)
	return nil
}

// Snapshot returns a read-only view of one live classroom.
func (c *Coordinator) Snapshot(classroom string) (*ClassSnapshot, bool) {
	sess, ok := c.store.Get(classroom)
	if !ok {
		return nil, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return &ClassSnapshot{
		Classroom: classroom,
		Lifecycle: sess.lifecycle,
		Presence:  sess.presence(),
	}, true
}

// Stats returns live counters for the health endpoint.
func (c *Coordinator) Stats() map[string]int {
	stats := c.registry.Stats()
	stats["sessions"] = c.store.Count()
	return stats
}

// teacherSession resolves connID to a teacher binding and its session.
func (c *Coordinator) teacherSession(connID string) (Binding, *Session, error) {
	b, ok := c.registry.Get(connID)
	if !ok {
		return Binding{}, nil, ErrNotBound
	}
	if b.Role != types.RoleTeacher {
		return Binding{}, nil, ErrForbidden
	}
	sess, ok := c.store.Get(b.Classroom)
	if !ok {
		return Binding{}, nil, ErrNotBound
	}
	return b, sess, nil
}

// record appends event to the session history, enqueues the durable
// append and broadcasts the event. Caller holds the session mutex, which
// is what gives every recipient the same per-classroom event order.
// Persistence is best-effort: a full queue or closed store is logged and
// never blocks delivery.
func (c *Coordinator) record(sess *Session, event *types.Event) {
	sess.appendEvent(event)

	if err := c.history.Append(context.Background(), event); err != nil {
		log.Printf("History append failed for classroom %s kind=%s: %v", event.Classroom, event.Kind, err)
	}

	c.broadcast(sess.ID, &types.ServerMessage{Type: types.ServerTypeEvent, Event: event})
}

func (c *Coordinator) broadcastPresence(sess *Session) {
	c.broadcast(sess.ID, &types.ServerMessage{Type: types.ServerTypePresence, Presence: sess.presence()})
}

// broadcast enqueues msg to every connection bound to classroom.
// Delivery continues past individual failures; a slow consumer with a
// full buffer loses the frame rather than stalling the classroom.
func (c *Coordinator) broadcast(classroom string, msg *types.ServerMessage) {
	for _, conn := range c.registry.Connections(classroom) {
		if err := conn.SendJSON(msg); err != nil {
			log.Printf("Failed to deliver to connection %s in %s: %v", conn.ID(), classroom, err)
		}
	}
}

func systemEvent(classroom, kind, message string) *types.Event {
	return &types.Event{
		ID:        uuid.New().String(),
		Classroom: classroom,
		Username:  types.SystemUsername,
		Role:      types.RoleSystem,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	}
}
