package classroom

import "errors"

// Failure taxonomy for coordinator operations. Each is returned
// synchronously to the caller of the failing operation and never crashes
// the coordinator.
var (
	ErrClassroomNotFound = errors.New("classroom not found")
	ErrClassNotStarted   = errors.New("class has not started yet")
	ErrForbidden         = errors.New("operation requires a teacher binding")
	ErrNotBound          = errors.New("connection is not bound to a classroom")
	ErrRoleConflict      = errors.New("username already present in classroom with a different role")
	ErrRateLimited       = errors.New("chat rate limit exceeded")
)
