package types

import "context"

// ContextStore loads a user's full plan snapshot from durable storage.
// One call per session start; implementations must not cache stale data.
type ContextStore interface {
	LoadUserContext(ctx context.Context, userID string) (*UserContext, error)
}

// LogStore appends one user-generated event to durable storage.
// A single call per event; no batching is required of implementations.
type LogStore interface {
	AppendLog(ctx context.Context, event LogEvent) error
}

// Reasoner answers a delegated query for a given specialist.
// Single request/response; streaming of the spoken output happens elsewhere.
type Reasoner interface {
	Route(ctx context.Context, specialist SpecialistTag, query string) (string, error)
}
