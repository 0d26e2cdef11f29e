package adapter

import (
	"context"
	"sync"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

type retryKey struct {
	messageID   int64
	recipientID int64
}

// MemRetryLedger is the in-process RetryLedger. Record is an upsert so
// replayed dispatches never grow the ledger.
type MemRetryLedger struct {
	mu          sync.Mutex
	entries     map[retryKey]delivery.RetryEntry
	maxAttempts int
	backoff     time.Duration
}

func NewMemRetryLedger(maxAttempts int, backoff time.Duration) *MemRetryLedger {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &MemRetryLedger{
		entries:     make(map[retryKey]delivery.RetryEntry),
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

var _ repository.RetryLedger = (*MemRetryLedger)(nil)

func (l *MemRetryLedger) Record(_ context.Context, messageID, recipientID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[retryKey{messageID, recipientID}] = delivery.RetryEntry{
		MessageID:   messageID,
		RecipientID: recipientID,
		EnqueuedAt:  time.Now().UTC(),
		Attempts:    0,
	}
	return nil
}

func (l *MemRetryLedger) Acknowledge(_ context.Context, messageID, recipientID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, retryKey{messageID, recipientID})
	return nil
}

func (l *MemRetryLedger) SweepDue(_ context.Context, now time.Time) ([]delivery.RetryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var due []delivery.RetryEntry
	for k, e := range l.entries {
		if !e.Due(now, l.backoff) {
			continue
		}
		if e.Attempts >= l.maxAttempts {
			delete(l.entries, k)
			continue
		}
		e.Attempts++
		l.entries[k] = e
		due = append(due, e)
	}
	return due, nil
}

func (l *MemRetryLedger) Pending(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries), nil
}
