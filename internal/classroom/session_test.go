package classroom

import (
	"testing"

	"github.com/hadikhanhk786/live-class/pkg/types"
)

func TestSessionAdmitStudentBeforeStart(t *testing.T) {
	sess := newSession("math", nil)

	if err := sess.admit("alice", types.RoleStudent); err != ErrClassNotStarted {
		t.Fatalf("expected ErrClassNotStarted, got %v", err)
	}
	if len(sess.students) != 0 {
		t.Error("refused admission must not mutate membership")
	}

	sess.start()
	if err := sess.admit("alice", types.RoleStudent); err != nil {
		t.Fatalf("admit after start failed: %v", err)
	}
	if len(sess.students) != 1 || sess.students[0] != "alice" {
		t.Errorf("unexpected students: %v", sess.students)
	}
}

func TestSessionAdmitTeacherAnytime(t *testing.T) {
	sess := newSession("math", nil)

	if err := sess.admit("smith", types.RoleTeacher); err != nil {
		t.Fatalf("teacher admission before start failed: %v", err)
	}
	if !sess.isTeacher("smith") {
		t.Error("smith should be a teacher member")
	}
}

func TestSessionAdmitDuplicateIsNoOp(t *testing.T) {
	sess := newSession("math", nil)
	sess.start()

	if err := sess.admit("alice", types.RoleStudent); err != nil {
		t.Fatalf("first admit failed: %v", err)
	}
	if err := sess.admit("alice", types.RoleStudent); err != nil {
		t.Fatalf("re-admit failed: %v", err)
	}
	if len(sess.students) != 1 {
		t.Errorf("student set has duplicates: %v", sess.students)
	}
}

func TestSessionAdmitRoleConflict(t *testing.T) {
	sess := newSession("math", nil)
	sess.start()

	if err := sess.admit("pat", types.RoleTeacher); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if err := sess.admit("pat", types.RoleStudent); err != ErrRoleConflict {
		t.Fatalf("expected ErrRoleConflict, got %v", err)
	}
	if len(sess.students) != 0 {
		t.Error("conflicting admission must not mutate membership")
	}
	if !sess.isTeacher("pat") {
		t.Error("original role must be preserved")
	}
}

func TestSessionDismissIdempotent(t *testing.T) {
	sess := newSession("math", nil)
	sess.start()
	_ = sess.admit("alice", types.RoleStudent)

	sess.dismiss("alice")
	sess.dismiss("alice")
	sess.dismiss("nobody")

	if len(sess.students) != 0 {
		t.Errorf("unexpected students after dismiss: %v", sess.students)
	}
}

func TestSessionLifecycleTransitions(t *testing.T) {
	sess := newSession("math", nil)

	if sess.lifecycle != types.LifecycleCreated {
		t.Fatalf("new session lifecycle = %q", sess.lifecycle)
	}
	if !sess.start() {
		t.Error("first start should transition")
	}
	if sess.start() {
		t.Error("re-start should be a no-op")
	}
	if sess.lifecycle != types.LifecycleActive {
		t.Fatalf("lifecycle after start = %q", sess.lifecycle)
	}

	if !sess.end() {
		t.Error("end on active class should transition")
	}
	if sess.end() {
		t.Error("end on inactive class should be a no-op")
	}
	if sess.lifecycle != types.LifecycleInactive {
		t.Fatalf("lifecycle after end = %q", sess.lifecycle)
	}

	// the class can be started again after ending
	if !sess.start() {
		t.Error("restart after end should transition")
	}
}

func TestSessionEndBeforeStartIsNoOp(t *testing.T) {
	sess := newSession("math", nil)
	if sess.end() {
		t.Error("end on a never-started class should be a no-op")
	}
	if sess.lifecycle != types.LifecycleCreated {
		t.Errorf("lifecycle mutated to %q", sess.lifecycle)
	}
}

func TestSessionPresenceIsCopied(t *testing.T) {
	sess := newSession("math", nil)
	_ = sess.admit("smith", types.RoleTeacher)
	sess.start()
	_ = sess.admit("alice", types.RoleStudent)
	_ = sess.admit("bob", types.RoleStudent)

	p := sess.presence()
	if len(p.Teachers) != 1 || len(p.Students) != 2 {
		t.Fatalf("unexpected presence: %+v", p)
	}
	if p.Students[0] != "alice" || p.Students[1] != "bob" {
		t.Errorf("insertion order not preserved: %v", p.Students)
	}

	p.Students[0] = "mallory"
	if sess.students[0] != "alice" {
		t.Error("presence snapshot aliases session state")
	}
}

func TestSessionHistorySeedAndSnapshot(t *testing.T) {
	seed := []*types.Event{
		{ID: "1", Kind: types.KindChat, Message: "old"},
	}
	sess := newSession("math", seed)

	sess.appendEvent(&types.Event{ID: "2", Kind: types.KindChat, Message: "new"})

	snap := sess.historySnapshot()
	if len(snap) != 2 {
		t.Fatalf("history length = %d, want 2", len(snap))
	}
	if snap[0].ID != "1" || snap[1].ID != "2" {
		t.Errorf("history order wrong: %v, %v", snap[0].ID, snap[1].ID)
	}

	snap = append(snap, &types.Event{ID: "3"})
	if len(sess.history) != 2 {
		t.Error("history snapshot aliases session state")
	}
}
