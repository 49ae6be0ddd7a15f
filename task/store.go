package task

import "context"

// Store persists task records. Implementations must be safe for concurrent
// use. ConditionalUpdate is the only write after Insert and is the sole
// concurrency control the orchestrator relies on.
type Store interface {
	// Insert stores a new task. It returns ErrDuplicateID if the id exists.
	Insert(ctx context.Context, t *Task) error

	// FindByID returns the task with the given id or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Task, error)

	// ConditionalUpdate applies p only if the stored status equals expected
	// at the time of the write. It reports whether the patch was applied;
	// an unknown id yields false and no error.
	ConditionalUpdate(ctx context.Context, id string, expected Status, p Patch) (bool, error)

	// ListByOwner returns up to limit tasks owned by walletAddress, newest first.
	ListByOwner(ctx context.Context, walletAddress string, limit int) ([]*Task, error)
}
