package classroom

import (
	"sync"

	"github.com/hadikhanhk786/live-class/pkg/types"
)

// Session holds one classroom's live coordination state: lifecycle,
// membership and the ordered event history. All mutating access goes
// through the session mutex; the coordinator holds it for the full
// critical section of an operation (mutate + persist enqueue + broadcast
// enqueue) so concurrent operations on the same classroom serialize.
// Sessions for different classrooms proceed fully in parallel.
type Session struct {
	ID string

	mu        sync.Mutex
	lifecycle string
	teachers  []string
	students  []string
	history   []*types.Event
}

func newSession(id string, seed []*types.Event) *Session {
	return &Session{
		ID:        id,
		lifecycle: types.LifecycleCreated,
		history:   seed,
	}
}

// The methods below assume s.mu is held by the caller.

// memberRole reports the role username currently holds in the classroom,
// if any.
func (s *Session) memberRole(username string) (string, bool) {
	for _, t := range s.teachers {
		if t == username {
			return types.RoleTeacher, true
		}
	}
	for _, st := range s.students {
		if st == username {
			return types.RoleStudent, true
		}
	}
	return "", false
}

// admit adds username to the set matching role. Students are refused
// while class is not in session; teachers are always admitted.
// Re-admitting a present username under the same role is a no-op, so the
// sets stay duplicate-free. Admission under a different role than the one
// already held is refused without mutation.
func (s *Session) admit(username, role string) error {
	if role == types.RoleStudent && s.lifecycle != types.LifecycleActive {
		return ErrClassNotStarted
	}

	if current, ok := s.memberRole(username); ok {
		if current != role {
			return ErrRoleConflict
		}
		return nil
	}

	switch role {
	case types.RoleTeacher:
		s.teachers = append(s.teachers, username)
	case types.RoleStudent:
		s.students = append(s.students, username)
	default:
		return types.ErrInvalidRole
	}
	return nil
}

// dismiss removes username from both membership sets. Removing an absent
// username is a no-op, not an error.
func (s *Session) dismiss(username string) {
	s.teachers = removeName(s.teachers, username)
	s.students = removeName(s.students, username)
}

func (s *Session) isTeacher(username string) bool {
	role, ok := s.memberRole(username)
	return ok && role == types.RoleTeacher
}

// start transitions Created/Inactive to Active. Returns false if the
// class is already in session, so callers can make re-starting a no-op
// without double-emitting class_start.
func (s *Session) start() bool {
	if s.lifecycle == types.LifecycleActive {
		return false
	}
	s.lifecycle = types.LifecycleActive
	return true
}

// end transitions Active to Inactive. Returns false when there is no
// class in session to end.
func (s *Session) end() bool {
	if s.lifecycle != types.LifecycleActive {
		return false
	}
	s.lifecycle = types.LifecycleInactive
	return true
}

func (s *Session) appendEvent(event *types.Event) {
	s.history = append(s.history, event)
}

// presence returns a copied membership snapshot in insertion order.
func (s *Session) presence() *types.Presence {
	return &types.Presence{
		Teachers: append([]string{}, s.teachers...),
		Students: append([]string{}, s.students...),
	}
}

// historySnapshot returns a copy of the event slice. The events
// themselves are immutable and safe to share.
func (s *Session) historySnapshot() []*types.Event {
	return append([]*types.Event{}, s.history...)
}

func removeName(names []string, target string) []string {
	for i, n := range names {
		if n == target {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
