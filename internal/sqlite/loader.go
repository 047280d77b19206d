// This file keeps records.jsonl in step with the records table.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// mirrorPath returns the records.jsonl location.
func (b *Backend) mirrorPath() string {
	return filepath.Join(b.dataDir, recordsJSONL)
}

// seedFromMirror loads records.jsonl into an empty records table. Loading is
// transactional: all valid lines load or the table stays empty. Malformed
// lines and records missing an ID, owner, label or valid date are skipped;
// unknown fields are ignored.
// The caller must hold b.mu write lock.
func (b *Backend) seedFromMirror() error {
	var count int
	if err := b.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return fmt.Errorf("counting records: %w", err)
	}
	if count > 0 {
		return nil
	}

	lines, skipped, err := readMirrorFile(b.mirrorPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO records (" + recordColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	loaded := 0
	for _, rec := range lines {
		if rec.RecordID == "" || rec.OwnerID == "" || rec.Label == "" {
			skipped++
			continue
		}
		date, err := types.ParseDate(rec.Date)
		if err != nil {
			skipped++
			continue
		}
		createdAt := rec.CreatedAt
		if _, err := time.Parse(time.RFC3339Nano, createdAt); err != nil {
			createdAt = time.Now().UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.Exec(rec.RecordID, rec.OwnerID, rec.Label,
			date.Year, int(date.Month), date.Day,
			nullString(rec.Group), nullString(rec.Details), createdAt); err != nil {
			return fmt.Errorf("inserting %s: %w", rec.RecordID, err)
		}
		loaded++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}

	b.logger.Info("seeded records from mirror", "path", b.mirrorPath(), "records", loaded, "skipped", skipped)
	return nil
}

// persistMirror rewrites records.jsonl from the committed table contents.
// The database is the source of truth, so a failed mirror write is logged
// and does not fail the mutation that triggered it.
// The caller must hold b.mu write lock.
func (b *Backend) persistMirror(ctx context.Context) {
	if !b.mirror {
		return
	}
	if err := b.writeMirror(ctx); err != nil {
		b.logger.Warn("records mirror write failed", "path", b.mirrorPath(), "error", err)
	}
}

func (b *Backend) writeMirror(ctx context.Context) error {
	records, err := queryRecords(ctx, b.db, "SELECT "+recordColumns+" FROM records ORDER BY rowid")
	if err != nil {
		return err
	}

	lines := make([]recordJSON, 0, len(records))
	for _, r := range records {
		lines = append(lines, recordJSON{
			RecordID:  r.RecordID,
			OwnerID:   r.OwnerID,
			Label:     r.Label,
			Date:      r.Date.String(),
			Group:     r.Group,
			Details:   r.Details,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	if err := os.MkdirAll(b.dataDir, 0o755); err != nil {
		return err
	}
	return writeMirrorFile(b.mirrorPath(), lines)
}
