package types

import "context"

// RecordStore is durable keyed storage for event records.
// Implementations allow concurrent reads and serialize writes.
type RecordStore interface {
	// Add validates and inserts a record atomically and returns its ID.
	// Returns ErrInvalidDate, ErrInvalidOwner, or ErrInvalidLabel for bad
	// input, and a *StorageError when persistence fails.
	Add(ctx context.Context, rec NewRecord) (string, error)

	// ListByOwner returns the owner's records in insertion order.
	// An owner with no records yields an empty slice, not an error.
	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)

	// DeleteByOwnerAndLabel removes one record with the given owner and
	// label. When several records share the pair, the first in insertion
	// order is removed. Returns false if nothing matched.
	DeleteByOwnerAndLabel(ctx context.Context, ownerID, label string) (bool, error)

	// ListDistinctOwners returns every owner with at least one record,
	// each exactly once, ordered by their first insertion.
	ListDistinctOwners(ctx context.Context) ([]string, error)

	// MatchingToday returns the owner's records whose month and day equal
	// day, ignoring the stored year, in insertion order.
	MatchingToday(ctx context.Context, ownerID string, day MonthDay) ([]Record, error)

	// Close releases storage resources. Close is idempotent.
	Close() error
}
