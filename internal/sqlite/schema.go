package sqlite

// Schema version tracking via PRAGMA user_version:
// 0 - empty database
// 1 - records table with structural date columns
const currentSchemaVersion = 1

// Schema DDL. Statements are idempotent so Attach can run them on every open.
const (
	createRecords = `CREATE TABLE IF NOT EXISTS records (
    record_id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    label TEXT NOT NULL,
    event_year INTEGER NOT NULL,
    event_month INTEGER NOT NULL CHECK (event_month BETWEEN 1 AND 12),
    event_day INTEGER NOT NULL CHECK (event_day BETWEEN 1 AND 31),
    group_name TEXT,
    details TEXT,
    created_at TEXT NOT NULL
);`

	idxRecordsOwner    = `CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner_id);`
	idxRecordsOwnerDay = `CREATE INDEX IF NOT EXISTS idx_records_owner_day ON records(owner_id, event_month, event_day);`
	idxRecordsLabel    = `CREATE INDEX IF NOT EXISTS idx_records_owner_label ON records(owner_id, label);`
)

// schemaDDL lists all statements in dependency order.
var schemaDDL = []string{
	createRecords,
	idxRecordsOwner,
	idxRecordsOwnerDay,
	idxRecordsLabel,
}

// recordColumns is the column list used by every SELECT on records, in the
// order scanRecord expects.
const recordColumns = "record_id, owner_id, label, event_year, event_month, event_day, group_name, details, created_at"
