// Package memstore implements types.RecordStore in memory. It backs the
// "memory" storage driver and the notifier and chat tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/cakeday/internal/daymatch"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Compile-time interface check.
var _ types.RecordStore = (*Store)(nil)

// Store keeps records in a slice in insertion order.
type Store struct {
	mu      sync.RWMutex
	records []types.Record
	closed  bool

	// failOps injects errors per operation name; see FailOn.
	failOps map[string]error
}

// New returns an empty Store.
func New() *Store {
	return &Store{failOps: make(map[string]error)}
}

// FailOn makes every subsequent call of op ("add", "list", "delete",
// "owners", "match") fail with err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOps, op)
		return
	}
	s.failOps[op] = err
}

// check must be called with s.mu held.
func (s *Store) check(op string) error {
	if s.closed {
		return types.NewStorageError(op, types.ErrStoreDetached)
	}
	if err, ok := s.failOps[op]; ok {
		return types.NewStorageError(op, err)
	}
	return nil
}

// Add validates rec and appends it.
func (s *Store) Add(ctx context.Context, rec types.NewRecord) (string, error) {
	date, err := rec.Validate()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", types.NewStorageError("add", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("add"); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", types.NewStorageError("add", err)
	}
	s.records = append(s.records, types.Record{
		RecordID:  id.String(),
		OwnerID:   rec.OwnerID,
		Label:     rec.Label,
		Date:      date,
		Group:     copyString(rec.Group),
		Details:   copyString(rec.Details),
		CreatedAt: time.Now().UTC(),
	})
	return id.String(), nil
}

// ListByOwner returns copies of the owner's records in insertion order.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("list"); err != nil {
		return nil, err
	}
	out := []types.Record{}
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

// DeleteByOwnerAndLabel removes the first matching record.
func (s *Store) DeleteByOwnerAndLabel(ctx context.Context, ownerID, label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete"); err != nil {
		return false, err
	}
	for i, r := range s.records {
		if r.OwnerID == ownerID && r.Label == label {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ListDistinctOwners returns owners in order of their earliest record.
func (s *Store) ListDistinctOwners(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("owners"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	owners := []string{}
	for _, r := range s.records {
		if !seen[r.OwnerID] {
			seen[r.OwnerID] = true
			owners = append(owners, r.OwnerID)
		}
	}
	return owners, nil
}

// MatchingToday returns copies of the owner's records that fall on day.
// An empty owner matches nothing.
func (s *Store) MatchingToday(ctx context.Context, ownerID string, day types.MonthDay) ([]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("match"); err != nil {
		return nil, err
	}
	out := []types.Record{}
	for _, r := range s.records {
		if r.OwnerID == ownerID && daymatch.Matches(r.Date, day) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

// Close marks the store closed. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// clone detaches the optional fields so callers cannot write through them.
func clone(r types.Record) types.Record {
	r.Group = copyString(r.Group)
	r.Details = copyString(r.Details)
	return r
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
