package types

import (
	"time"
)

// Roles attached to connection bindings and recorded events. The system
// role is reserved for server-generated events and is never bindable.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleSystem  = "system"
)

// SystemUsername is the author of every server-generated event.
const SystemUsername = "System"

// Classroom lifecycle states. A classroom starts in Created, moves to
// Active when a teacher starts class and to Inactive when class ends.
// Sessions are never destroyed for the process lifetime.
const (
	LifecycleCreated  = "created"
	LifecycleActive   = "active"
	LifecycleInactive = "inactive"
)

// Event kinds recorded in a classroom's history.
const (
	KindChat                = "chat"
	KindClassStart          = "class_start"
	KindClassEnd            = "class_end"
	KindUserJoin            = "user_join"
	KindUserLeave           = "user_leave"
	KindUserDisconnect      = "user_disconnect"
	KindUserRemoved         = "user_removed"
	KindFileUploaded        = "file_uploaded"
	KindFileDownloaded      = "file_downloaded"
	KindAssignmentSubmitted = "assignment_submitted"
)

// Event is one immutable entry in a classroom's ordered history. Events
// are appended exactly once and never mutated or removed.
type Event struct {
	ID        string    `json:"id"`
	Classroom string    `json:"classroom"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	File      *FileInfo `json:"file,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FileInfo references an uploaded document attached to a file or
// assignment event. Storage of the file itself is out of scope here.
type FileInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Presence is an ordered snapshot of a classroom's membership. Insertion
// order is preserved for UI stability.
type Presence struct {
	Teachers []string `json:"teachers"`
	Students []string `json:"students"`
}

// Server-to-client envelope types.
const (
	ServerTypeJoined       = "joined"
	ServerTypeEvent        = "event"
	ServerTypePresence     = "presence"
	ServerTypeClassStarted = "class_started"
	ServerTypeClassEnded   = "class_ended"
	ServerTypeRemoved      = "removed"
	ServerTypeError        = "error"
)

// ServerMessage is the single outbound frame format. Exactly one of the
// optional fields is populated depending on Type; control signals
// (class_started, class_ended, removed) carry no payload at all.
type ServerMessage struct {
	Type      string    `json:"type"`
	Event     *Event    `json:"event,omitempty"`
	Presence  *Presence `json:"presence,omitempty"`
	History   []*Event  `json:"history,omitempty"`
	Lifecycle string    `json:"lifecycle,omitempty"`
	Error     string    `json:"error,omitempty"`
}
