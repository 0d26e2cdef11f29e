package delivery

import "time"

// RetryEntry marks one (message, recipient) pair as in flight: pushed
// over the connection layer but not yet acknowledged. The sweeper
// re-drives entries older than the backoff threshold until the attempt
// cap, after which the recipient relies on push fallback or a full sync.
type RetryEntry struct {
	MessageID   int64
	RecipientID int64
	EnqueuedAt  time.Time
	Attempts    int
}

// Due reports whether the entry has aged past the backoff threshold for
// its attempt count. Backoff is linear in attempts.
func (e RetryEntry) Due(now time.Time, backoff time.Duration) bool {
	wait := time.Duration(e.Attempts+1) * backoff
	return now.Sub(e.EnqueuedAt) >= wait
}
