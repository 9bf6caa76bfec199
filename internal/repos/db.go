package repos

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// OpenDB opens the local durable store (sqlite file or ":memory:") and makes
// sure the schema exists. This is the only storage that must survive a crash
// between a user action and its confirmed remote sync.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Pending mutations, one row per queued change. id is the drain cursor.
CREATE TABLE IF NOT EXISTS pending_sync(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  scope_key TEXT NOT NULL,
  kind TEXT NOT NULL,
  item TEXT NOT NULL,
  op_token TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_sync_scope ON pending_sync(scope_key, id);

-- Last-known-good full state per scope (user id or the anonymous key).
CREATE TABLE IF NOT EXISTS snapshots(
  scope_key TEXT PRIMARY KEY,
  data TEXT NOT NULL,
  last_sync INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}
