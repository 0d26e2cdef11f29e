package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// PgMessageStore persists encrypted messages in Postgres. The version
// column backs compare-and-swap: every mutation update carries the
// expected version in its WHERE clause, so a lost race affects zero
// rows and leaves the record untouched.
type PgMessageStore struct {
	pool *pgxpool.Pool
}

func NewPgMessageStore(pool *pgxpool.Pool) *PgMessageStore {
	return &PgMessageStore{pool: pool}
}

var _ repository.MessageStore = (*PgMessageStore)(nil)

const messageColumns = `
	id, conversation_id, sender_id, recipient_id, room_id,
	ciphertext, iv, auth_tag, key_id, algorithm, content_type,
	status, version, created_at, read_at, destruct_timer_ms, destruct_at,
	recalled_by, recalled_at`

func (r *PgMessageStore) Create(ctx context.Context, m delivery.Message) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgMessageStore: nil pool")
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO courier.message_encrypted (
			conversation_id, sender_id, recipient_id, room_id,
			ciphertext, iv, auth_tag, key_id, algorithm, content_type,
			status, version, created_at, destruct_timer_ms, destruct_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13, $14)
		RETURNING id
	`, m.ConversationID, m.SenderID, m.RecipientID, m.RoomID,
		m.Ciphertext, m.IV, m.AuthTag, m.KeyID, string(m.Algorithm), m.ContentType,
		m.Status, m.CreatedAt, m.DestructTimer.Milliseconds(), m.DestructAt).Scan(&id)
	return id, err
}

func (r *PgMessageStore) GetByID(ctx context.Context, id int64) (*delivery.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM courier.message_encrypted
		WHERE id = $1
	`, id)
	return scanMessage(row)
}

// CompareAndSwap re-reads the record, applies mutate to the copy, and
// persists the mutable fields with the expected version as an update
// guard. ok=false means the stored version moved on; the caller
// re-reads and retries.
func (r *PgMessageStore) CompareAndSwap(ctx context.Context, id int64, expectedVersion int64, mutate repository.MutatorFn) (int64, bool, error) {
	if r == nil || r.pool == nil {
		return 0, false, errors.New("PgMessageStore: nil pool")
	}

	m, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if m.Version != expectedVersion {
		return 0, false, nil
	}
	if err := mutate(m); err != nil {
		return 0, false, err
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE courier.message_encrypted
		SET status = $3, version = version + 1,
		    ciphertext = $4, iv = $5, auth_tag = $6,
		    read_at = $7, destruct_at = $8,
		    recalled_by = $9, recalled_at = $10
		WHERE id = $1 AND version = $2
	`, id, expectedVersion, m.Status,
		m.Ciphertext, m.IV, m.AuthTag,
		m.ReadAt, m.DestructAt, m.RecalledBy, m.RecalledAt)
	if err != nil {
		return 0, false, err
	}
	if ct.RowsAffected() == 0 {
		return 0, false, nil
	}
	return expectedVersion + 1, true, nil
}

func (r *PgMessageStore) ListDestructDue(ctx context.Context, now time.Time, limit int) ([]delivery.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM courier.message_encrypted
		WHERE destruct_at IS NOT NULL AND destruct_at <= $1 AND status < $2
		ORDER BY destruct_at ASC
		LIMIT $3
	`, now, delivery.MessageStatusRecalled, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []delivery.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (*delivery.Message, error) {
	var (
		m         delivery.Message
		algorithm string
		timerMs   int64
	)
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.RoomID,
		&m.Ciphertext, &m.IV, &m.AuthTag, &m.KeyID, &algorithm, &m.ContentType,
		&m.Status, &m.Version, &m.CreatedAt, &m.ReadAt, &timerMs, &m.DestructAt,
		&m.RecalledBy, &m.RecalledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, delivery.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Algorithm = delivery.Algorithm(algorithm)
	m.DestructTimer = time.Duration(timerMs) * time.Millisecond
	return &m, nil
}
