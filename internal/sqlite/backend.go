// Package sqlite implements the SQLite record store for cakeday.
// SQLite is the source of truth; records.jsonl is an optional mirror that
// seeds an empty database on Attach.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Compile-time interface check: Backend must implement RecordStore.
var _ types.RecordStore = (*Backend)(nil)

// memoryDSN selects a private in-memory database.
const memoryDSN = ":memory:"

// dbFileName is the database file created in DataDir when no DSN is given.
const dbFileName = "cakeday.db"

// Backend implements types.RecordStore on SQLite. Reads share the read lock
// and run concurrently; mutations take the write lock and run one at a time,
// each inside its own transaction.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	dataDir  string
	mirror   bool
	logger   *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for mirror warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open creates a backend and attaches it in one step.
func Open(config types.Config, opts ...Option) (*Backend, error) {
	b := NewBackend(opts...)
	if err := b.Attach(config); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach opens the database described by config, applies pragmas and the
// schema, and seeds the records table from records.jsonl when the mirror is
// enabled and the table is empty.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}

	dsn := config.Storage.DSN
	memory := dsn == memoryDSN
	if dsn == "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return types.NewStorageError("attach", err)
		}
		dsn = filepath.Join(dataDir, dbFileName)
	}

	db, err := sql.Open("sqlite", withPragmas(dsn, memory))
	if err != nil {
		return types.NewStorageError("attach", err)
	}

	// Every pooled connection to :memory: is a separate database.
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return types.NewStorageError("attach", fmt.Errorf("connecting: %w", err))
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return types.NewStorageError("attach", err)
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir
	b.mirror = config.Storage.JSONLMirror

	if b.mirror {
		if err := b.seedFromMirror(); err != nil {
			db.Close()
			b.db = nil
			return types.NewStorageError("attach", fmt.Errorf("load %s: %w", recordsJSONL, err))
		}
	}

	b.attached = true
	return nil
}

// Detach releases the database connection. After Detach, all operations
// return ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return types.NewStorageError("detach", err)
		}
		b.db = nil
	}

	b.attached = false
	return nil
}

// Close implements types.RecordStore.
func (b *Backend) Close() error {
	return b.Detach()
}

// withPragmas appends modernc _pragma parameters to dsn so that every pooled
// connection gets the same settings.
func withPragmas(dsn string, memory bool) string {
	pragmas := []string{
		"busy_timeout(5000)",
		"foreign_keys(1)",
	}
	if !memory {
		pragmas = append(pragmas, "journal_mode(WAL)", "synchronous(NORMAL)")
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + q.Encode()
}

// applySchema creates tables if they don't exist and records the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema: %w", err)
		}
	}

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return tx.Commit()
}

// checkAttached returns ErrStoreDetached wrapped as a StorageError.
// The caller must hold b.mu.
func (b *Backend) checkAttached(op string) error {
	if !b.attached {
		return types.NewStorageError(op, types.ErrStoreDetached)
	}
	return nil
}

// generateUUID generates a new UUID v7 for record IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
