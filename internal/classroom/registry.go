package classroom

import (
	"log"
	"sync"

	"github.com/hadikhanhk786/live-class/pkg/interfaces"
	"github.com/hadikhanhk786/live-class/pkg/types"
)

// Binding is a snapshot of the association between a live connection and
// the (username, role, classroom) it joined with. A connection binds to
// at most one classroom, and the fields are set exactly once at join.
type Binding struct {
	ConnID    string
	Username  string
	Role      string
	Classroom string
}

type binding struct {
	conn      interfaces.Connection
	username  string
	role      string
	classroom string
}

func (b *binding) snapshot() Binding {
	return Binding{
		ConnID:    b.conn.ID(),
		Username:  b.username,
		Role:      b.role,
		Classroom: b.classroom,
	}
}

// Registry tracks connection bindings with O(1) lookup by connection ID
// and by (classroom, username). It holds back-references only; session
// state is owned exclusively by the Store.
type Registry struct {
	mu          sync.RWMutex
	byConn      map[string]*binding
	byClassroom map[string]map[string]*binding
}

// NewRegistry creates an empty binding registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn:      make(map[string]*binding),
		byClassroom: make(map[string]map[string]*binding),
	}
}

// Bind records conn as the current connection for username in classroom.
// If the username is already bound in that classroom the old connection
// is replaced — most recent bind wins — and closed asynchronously to
// avoid blocking registration on a dying peer.
func (r *Registry) Bind(conn interfaces.Connection, username, role, classroom string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.byClassroom[classroom]; ok {
		if old, ok := members[username]; ok && old.conn.ID() != conn.ID() {
			delete(r.byConn, old.conn.ID())
			go func() {
				if err := old.conn.Close(); err != nil {
					log.Printf("Failed to close replaced connection for %s: %v", username, err)
				}
			}()
		}
	}

	b := &binding{conn: conn, username: username, role: role, classroom: classroom}
	r.byConn[conn.ID()] = b
	if r.byClassroom[classroom] == nil {
		r.byClassroom[classroom] = make(map[string]*binding)
	}
	r.byClassroom[classroom][username] = b
}

// Unbind removes the binding for connID. Idempotent: unbinding an
// unknown connection returns ok=false. The classroom index entry is only
// removed if it still points at this exact binding, so an old connection
// being cleaned up cannot evict a newer binding for the same username.
func (r *Registry) Unbind(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byConn[connID]
	if !ok {
		return Binding{}, false
	}
	delete(r.byConn, connID)

	if members, ok := r.byClassroom[b.classroom]; ok {
		if current, ok := members[b.username]; ok && current == b {
			delete(members, b.username)
			if len(members) == 0 {
				delete(r.byClassroom, b.classroom)
			}
		}
	}
	return b.snapshot(), true
}

// Get returns the binding for connID.
func (r *Registry) Get(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byConn[connID]
	if !ok {
		return Binding{}, false
	}
	return b.snapshot(), true
}

// Lookup returns the current connection for username within classroom.
func (r *Registry) Lookup(classroom, username string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.byClassroom[classroom]
	if !ok {
		return nil, false
	}
	b, ok := members[username]
	if !ok {
		return nil, false
	}
	return b.conn, true
}

// Connections returns every connection currently bound to classroom.
func (r *Registry) Connections(classroom string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []interfaces.Connection
	for _, b := range r.byClassroom[classroom] {
		conns = append(conns, b.conn)
	}
	return conns
}

// StudentConnections returns the connections bound to classroom as
// students, for targeted class-end eviction signals.
func (r *Registry) StudentConnections(classroom string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []interfaces.Connection
	for _, b := range r.byClassroom[classroom] {
		if b.role == types.RoleStudent {
			conns = append(conns, b.conn)
		}
	}
	return conns
}

// Stats returns registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"bindings":   len(r.byConn),
		"classrooms": len(r.byClassroom),
	}
}
