package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// PgKeyDirectory serves recipient public keys from courier.user_key.
// Keys are written by the registration service; the delivery core only
// reads them.
type PgKeyDirectory struct {
	pool *pgxpool.Pool
}

func NewPgKeyDirectory(pool *pgxpool.Pool) *PgKeyDirectory {
	return &PgKeyDirectory{pool: pool}
}

var _ repository.KeyDirectory = (*PgKeyDirectory)(nil)

var ErrKeyNotFound = errors.New("key directory: key not found")

func (d *PgKeyDirectory) GetPublicKey(ctx context.Context, userID int64, keyID string) ([]byte, error) {
	const q = `SELECT public_key FROM courier.user_key WHERE user_id = $1 AND key_id = $2 AND revoked_at IS NULL`
	var key []byte
	if err := d.pool.QueryRow(ctx, q, userID, keyID).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("key directory: get public key: %w", err)
	}
	return key, nil
}

// Fingerprint is the hex SHA-256 of the raw key bytes, matching what
// clients display for out-of-band verification.
func (d *PgKeyDirectory) Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}
