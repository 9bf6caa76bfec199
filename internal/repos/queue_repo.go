package repos

import (
	"github.com/jmoiron/sqlx"

	"quickshop/internal/domain"
)

// QueueRepo is the local durable queue of pending mutations. Appends never
// touch the network; rows are removed one at a time, only after the sync
// engine confirms the matching remote write. Appends racing an in-flight
// drain are safe: each row is fetched, attempted and deleted independently.
type QueueRepo struct{ db *sqlx.DB }

func NewQueueRepo(db *sqlx.DB) *QueueRepo { return &QueueRepo{db: db} }

type queueRow struct {
	ID        int64  `db:"id"`
	ScopeKey  string `db:"scope_key"`
	Kind      string `db:"kind"`
	Item      string `db:"item"`
	OpToken   string `db:"op_token"`
	CreatedAt int64  `db:"created_at"`
}

// Append stores the mutation and returns its queue id. The op token is minted
// here so a retried transactional apply can be recognized remotely.
func (r *QueueRepo) Append(scope string, m domain.Mutation) (int64, error) {
	item, err := m.EncodeItem()
	if err != nil {
		return 0, err
	}
	res, err := r.db.Exec(`
		INSERT INTO pending_sync(scope_key, kind, item, op_token, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, scope, string(m.Kind), string(item), domain.NewID(), domain.NowMillis())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAll returns every pending row for the scope in append order.
func (r *QueueRepo) ListAll(scope string) ([]domain.PendingMutation, error) {
	var rows []queueRow
	err := r.db.Select(&rows, `
		SELECT id, scope_key, kind, item, op_token, created_at
		FROM pending_sync
		WHERE scope_key = ?
		ORDER BY id
	`, scope)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PendingMutation, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PendingMutation{
			ID:        row.ID,
			Kind:      row.Kind,
			Item:      []byte(row.Item),
			OpToken:   row.OpToken,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Remove deletes a single confirmed entry. Removing an already-removed id is
// a no-op.
func (r *QueueRepo) Remove(id int64) error {
	_, err := r.db.Exec(`DELETE FROM pending_sync WHERE id = ?`, id)
	return err
}

// Len reports the number of pending rows for a scope.
func (r *QueueRepo) Len(scope string) (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM pending_sync WHERE scope_key = ?`, scope)
	return n, err
}
