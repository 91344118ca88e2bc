package types

import "errors"

// Validation errors shared by the transport and API layers.
var (
	ErrInvalidUsername  = errors.New("username must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidClassName = errors.New("classroom name must be 1-200 characters")
	ErrInvalidRole      = errors.New("invalid role: must be 'teacher' or 'student'")
	ErrInvalidEventKind = errors.New("invalid event kind")
	ErrMessageTooLarge  = errors.New("message exceeds 64KB limit")
)
