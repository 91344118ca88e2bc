package types

import "regexp"

var (
	usernameRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	classNameRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)
)

// maxChatBytes bounds the text of a single chat message.
const maxChatBytes = 65536

// IsValidUsername checks if a username meets format requirements.
// The 1-50 character limit keeps usernames displayable and indexable.
func IsValidUsername(username string) bool {
	if len(username) < 1 || len(username) > 50 {
		return false
	}
	return usernameRegex.MatchString(username)
}

// IsValidClassName checks if a classroom name meets format requirements.
// Classroom names are case-sensitive keys; spaces are allowed for
// human-friendly names like "Intro to Go".
func IsValidClassName(name string) bool {
	if len(name) < 1 || len(name) > 200 {
		return false
	}
	return classNameRegex.MatchString(name)
}

// IsValidRole reports whether role is one a connection may bind with.
// The system role is reserved for server-generated events.
func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}

// IsValidEventKind reports whether kind is one of the recorded kinds.
func IsValidEventKind(kind string) bool {
	switch kind {
	case KindChat,
		KindClassStart,
		KindClassEnd,
		KindUserJoin,
		KindUserLeave,
		KindUserDisconnect,
		KindUserRemoved,
		KindFileUploaded,
		KindFileDownloaded,
		KindAssignmentSubmitted:
		return true
	default:
		return false
	}
}

// ValidateChatText bounds chat message size before it enters the event
// log; oversized payloads are refused rather than truncated.
func ValidateChatText(text string) error {
	if len(text) > maxChatBytes {
		return ErrMessageTooLarge
	}
	return nil
}
