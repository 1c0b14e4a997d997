package graph

import "context"

// Store persists WorkflowState snapshots. Implementations must be safe
// for concurrent use.
//
// Store makes no cross-operation transactional guarantees: a concurrent
// Get racing a Save may observe either the old or the new snapshot, never
// a torn one, but nothing here promises atomicity across two separate
// calls. Distributed, durable, or exactly-once persistence is explicitly
// out of scope.
type Store interface {
	// Get returns the WorkflowState with the given ID, or ErrRunNotFound.
	Get(ctx context.Context, id string) (WorkflowState, error)

	// ListByWorkflow returns every stored snapshot for the given workflow
	// ID, most-recently-saved first.
	ListByWorkflow(ctx context.Context, workflowID string) ([]WorkflowState, error)

	// ListByThread returns every stored snapshot for the given thread ID,
	// most-recently-saved first.
	ListByThread(ctx context.Context, threadID string) ([]WorkflowState, error)

	// Save persists s. Save is idempotent by ID: saving the same ID twice
	// overwrites rather than duplicating.
	Save(ctx context.Context, s WorkflowState) error

	// Delete removes the snapshot with the given ID. Deleting a
	// non-existent ID is not an error.
	Delete(ctx context.Context, id string) error

	// Exists reports whether a snapshot with the given ID is stored.
	Exists(ctx context.Context, id string) (bool, error)
}
