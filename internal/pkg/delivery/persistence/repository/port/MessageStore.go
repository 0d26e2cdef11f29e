package repository

import (
	"context"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

// MutatorFn edits a fresh copy of the stored message. Returning an
// error aborts the swap without side effects.
type MutatorFn func(m *delivery.Message) error

// MessageStore is the durable, versioned record of encrypted messages.
// CompareAndSwap is the single point of truth for every mutation race;
// callers never write partial fields outside of it.
type MessageStore interface {
	// Create persists a new message with version 0 and returns its id.
	Create(ctx context.Context, m delivery.Message) (int64, error)

	// GetByID returns the current record or delivery.ErrMessageNotFound.
	GetByID(ctx context.Context, id int64) (*delivery.Message, error)

	// CompareAndSwap applies mutate to a fresh copy of the record only
	// if the stored version equals expectedVersion, persisting
	// atomically and incrementing the version. On a version mismatch it
	// returns ok=false with no side effects. Errors from mutate abort
	// the swap and are returned verbatim.
	CompareAndSwap(ctx context.Context, id int64, expectedVersion int64, mutate MutatorFn) (newVersion int64, ok bool, err error)

	// ListDestructDue returns up to limit messages whose destruct
	// deadline has passed, oldest first.
	ListDestructDue(ctx context.Context, now time.Time, limit int) ([]delivery.Message, error)
}
