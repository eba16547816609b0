package ports

import (
	"context"
	"time"

	"filon/domain/branching"
	"filon/domain/events"
	"filon/domain/snapshot"
)

// SnapshotRepository defines the interface for snapshot persistence.
// Snapshots are immutable once saved; Save on an existing id is a conflict.
type SnapshotRepository interface {
	// Save persists a new snapshot
	Save(ctx context.Context, snap *snapshot.Snapshot) error

	// GetByID retrieves a snapshot by its ID
	GetByID(ctx context.Context, id string) (*snapshot.Snapshot, error)

	// ListByBranch retrieves the snapshots of a branch ordered by version
	ListByBranch(ctx context.Context, branchID string, opts ListOptions) ([]*snapshot.Snapshot, error)

	// Latest retrieves the highest version on a branch
	Latest(ctx context.Context, branchID string) (*snapshot.Snapshot, error)

	// Delete removes a snapshot
	Delete(ctx context.Context, id string) error
}

// BranchRepository defines the interface for branch persistence
type BranchRepository interface {
	// Save persists a branch (create or update). An update whose version does
	// not follow the stored one fails with a conflict.
	Save(ctx context.Context, branch *branching.Branch) error

	// GetByID retrieves a branch by its ID
	GetByID(ctx context.Context, id string) (*branching.Branch, error)

	// ListByGraph retrieves all branches of a graph
	ListByGraph(ctx context.Context, graphID string) ([]*branching.Branch, error)

	// FindByName retrieves a branch of a graph by name
	FindByName(ctx context.Context, graphID, name string) (*branching.Branch, error)
}

// ListOptions bounds list queries
type ListOptions struct {
	Limit      int
	Descending bool
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Locker hands out exclusive, expiring locks on named resources
type Locker interface {
	// Acquire takes the lock or fails with a conflict if another owner holds it
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock
type Lock interface {
	// Release gives up the lock
	Release(ctx context.Context) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}

// Metrics records application measurements
type Metrics interface {
	// Count adds value to a counter dimensioned by label
	Count(ctx context.Context, metric, label string, value float64)

	// Duration records elapsed time dimensioned by label
	Duration(ctx context.Context, metric, label string, d time.Duration)
}
