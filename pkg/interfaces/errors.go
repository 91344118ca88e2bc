package interfaces

import "errors"

// Common storage errors used across backends.
var (
	ErrClassExists     = errors.New("classroom already exists")
	ErrStoreClosed     = errors.New("history store is closed")
	ErrAppendQueueFull = errors.New("history append queue is full")
)
