package repos

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"quickshop/internal/domain"
)

// SnapshotRepo persists the last-known-good ShopState per scope key, letting a
// session start offline. Save failures are reported, never fatal; the
// in-memory state stays authoritative for the rest of the session.
type SnapshotRepo struct{ db *sqlx.DB }

func NewSnapshotRepo(db *sqlx.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) Save(scope string, s *domain.ShopState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO snapshots(scope_key, data, last_sync, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(scope_key) DO UPDATE SET
		  data = excluded.data,
		  last_sync = excluded.last_sync,
		  updated_at = CURRENT_TIMESTAMP
	`, scope, string(data), s.LastSync)
	return err
}

// Load returns the stored snapshot or nil when the scope has none.
func (r *SnapshotRepo) Load(scope string) (*domain.ShopState, error) {
	var data string
	err := r.db.Get(&data, `SELECT data FROM snapshots WHERE scope_key = ?`, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s domain.ShopState
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	s.Normalize()
	return &s, nil
}

// Delete clears the snapshot for a scope.
func (r *SnapshotRepo) Delete(scope string) error {
	_, err := r.db.Exec(`DELETE FROM snapshots WHERE scope_key = ?`, scope)
	return err
}
