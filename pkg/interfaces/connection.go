package interfaces

// Connection is the transport handle the coordinator delivers through.
// Implementations must make SendJSON safe for concurrent use and must
// never block it on network I/O: messages are enqueued to a per-connection
// outbound buffer and written by a single writer goroutine.
type Connection interface {
	// ID returns the opaque, process-unique connection identifier.
	ID() string

	// SendJSON enqueues a JSON message for delivery. It fails fast with
	// an error when the outbound buffer is full or the connection is
	// closed; it never waits on the peer.
	SendJSON(v interface{}) error

	// Close severs the connection. Safe to call multiple times; queued
	// messages are flushed on a best-effort basis before the socket
	// closes.
	Close() error
}
