// This file implements the record operations of the SQLite backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Add validates rec and inserts it in a single transaction.
// Validation errors are returned unwrapped; persistence failures are
// returned as *types.StorageError after rollback.
func (b *Backend) Add(ctx context.Context, rec types.NewRecord) (string, error) {
	date, err := rec.Validate()
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached("add"); err != nil {
		return "", err
	}

	id := generateUUID()
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", types.NewStorageError("add", fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO records ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, rec.OwnerID, rec.Label, date.Year, int(date.Month), date.Day,
		nullString(rec.Group), nullString(rec.Details), createdAt,
	)
	if err != nil {
		return "", types.NewStorageError("add", fmt.Errorf("inserting record: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return "", types.NewStorageError("add", fmt.Errorf("committing record: %w", err))
	}

	b.persistMirror(ctx)
	return id, nil
}

// ListByOwner returns the owner's records in insertion order.
func (b *Backend) ListByOwner(ctx context.Context, ownerID string) ([]types.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkAttached("list"); err != nil {
		return nil, err
	}

	records, err := queryRecords(ctx, b.db,
		"SELECT "+recordColumns+" FROM records WHERE owner_id = ? ORDER BY rowid", ownerID)
	if err != nil {
		return nil, types.NewStorageError("list", err)
	}
	return records, nil
}

// DeleteByOwnerAndLabel removes the first record, by insertion order, that
// has the given owner and label. Duplicate labels are allowed, so repeated
// calls remove them one at a time, oldest first.
func (b *Backend) DeleteByOwnerAndLabel(ctx context.Context, ownerID, label string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached("delete"); err != nil {
		return false, err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, types.NewStorageError("delete", fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		"SELECT rowid FROM records WHERE owner_id = ? AND label = ? ORDER BY rowid LIMIT 1",
		ownerID, label,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, types.NewStorageError("delete", fmt.Errorf("finding record: %w", err))
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE rowid = ?", rowID); err != nil {
		return false, types.NewStorageError("delete", fmt.Errorf("deleting record: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return false, types.NewStorageError("delete", fmt.Errorf("committing deletion: %w", err))
	}

	b.persistMirror(ctx)
	return true, nil
}

// ListDistinctOwners returns each owner with at least one record, ordered
// by the owner's earliest surviving record.
func (b *Backend) ListDistinctOwners(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkAttached("owners"); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT owner_id FROM records GROUP BY owner_id ORDER BY MIN(rowid)")
	if err != nil {
		return nil, types.NewStorageError("owners", fmt.Errorf("querying owners: %w", err))
	}
	defer rows.Close()

	owners := []string{}
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, types.NewStorageError("owners", fmt.Errorf("scanning owner: %w", err))
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("owners", fmt.Errorf("iterating owners: %w", err))
	}
	return owners, nil
}

// MatchingToday compares the stored month and day columns with day.
// The year column is never consulted.
func (b *Backend) MatchingToday(ctx context.Context, ownerID string, day types.MonthDay) ([]types.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkAttached("match"); err != nil {
		return nil, err
	}

	records, err := queryRecords(ctx, b.db,
		"SELECT "+recordColumns+" FROM records WHERE owner_id = ? AND event_month = ? AND event_day = ? ORDER BY rowid",
		ownerID, int(day.Month), day.Day)
	if err != nil {
		return nil, types.NewStorageError("match", err)
	}
	return records, nil
}

// queryRecords runs query and hydrates every row. It returns an empty,
// non-nil slice when nothing matches and nil on any error.
func queryRecords(ctx context.Context, q queryer, query string, args ...any) ([]types.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// scanRecord converts a row selected with recordColumns into a Record.
func scanRecord(rows *sql.Rows) (types.Record, error) {
	var (
		r              types.Record
		month          int
		group, details sql.NullString
		createdAt      string
	)
	err := rows.Scan(&r.RecordID, &r.OwnerID, &r.Label,
		&r.Date.Year, &month, &r.Date.Day, &group, &details, &createdAt)
	if err != nil {
		return types.Record{}, err
	}
	r.Date.Month = time.Month(month)
	r.Group = stringPtr(group)
	r.Details = stringPtr(details)
	r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return types.Record{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
