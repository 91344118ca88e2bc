package interfaces

import (
	"context"

	"github.com/hadikhanhk786/live-class/pkg/types"
)

// HistoryStore is the durable, append-only event store. Append is
// fire-and-forget: implementations enqueue the write and apply a bounded
// retry in the background, so callers never wait on storage while holding
// classroom state. LoadHistory is consulted once per classroom, when its
// in-memory session is first created.
type HistoryStore interface {
	Append(ctx context.Context, event *types.Event) error
	LoadHistory(ctx context.Context, classroom string) ([]*types.Event, error)
	Close() error
}

// ClassDirectory answers whether a classroom exists and manages the set
// of known classrooms. Existence is checked once per classroom, at first
// join.
type ClassDirectory interface {
	Exists(ctx context.Context, classroom string) (bool, error)
	CreateClass(ctx context.Context, classroom string) error
	ListClasses(ctx context.Context) ([]string, error)
}

// HealthChecker validates backing-store connectivity for the health
// endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
