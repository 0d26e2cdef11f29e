package repository

import (
	"context"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

// RetryLedger is the per-recipient in-flight bookkeeping behind
// at-least-once delivery. Record must upsert, never fail on replay:
// dispatch may run more than once for the same message.
type RetryLedger interface {
	// Record marks (messageID, recipientID) as pushed and unacked. A
	// second Record for the same pair refreshes the enqueue time
	// without growing the ledger.
	Record(ctx context.Context, messageID, recipientID int64) error

	// Acknowledge removes the entry once the recipient confirms.
	Acknowledge(ctx context.Context, messageID, recipientID int64) error

	// SweepDue returns entries older than their backoff threshold with
	// attempts below the cap, incrementing attempts as a side effect.
	// Entries at the cap are dropped.
	SweepDue(ctx context.Context, now time.Time) ([]delivery.RetryEntry, error)

	// Pending reports how many entries the ledger holds, for health
	// surfaces and tests.
	Pending(ctx context.Context) (int, error)
}
