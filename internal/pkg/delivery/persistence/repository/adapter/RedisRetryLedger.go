package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

const (
	retryEntryKeyFmt = "retry:entry:%d:%d" // hash: enqueued_at, attempts
	retryDueKey      = "retry:due"         // zset scored by enqueue time
)

// RedisRetryLedger tracks in-flight (message, recipient) pairs in a
// hash per entry plus a sorted-set index scored by enqueue time, so a
// sweep reads only entries old enough to be due.
type RedisRetryLedger struct {
	client      *redis.Client
	maxAttempts int
	backoff     time.Duration
}

func NewRedisRetryLedger(client *redis.Client, maxAttempts int, backoff time.Duration) *RedisRetryLedger {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &RedisRetryLedger{client: client, maxAttempts: maxAttempts, backoff: backoff}
}

var _ repository.RetryLedger = (*RedisRetryLedger)(nil)

func retryEntryKey(messageID, recipientID int64) string {
	return fmt.Sprintf(retryEntryKeyFmt, messageID, recipientID)
}

func retryMember(messageID, recipientID int64) string {
	return fmt.Sprintf("%d:%d", messageID, recipientID)
}

// Record upserts the pair. Replaying a dispatch refreshes enqueued_at
// and resets attempts rather than growing the ledger.
func (l *RedisRetryLedger) Record(ctx context.Context, messageID, recipientID int64) error {
	now := time.Now().UTC()
	pipe := l.client.TxPipeline()
	pipe.HSet(ctx, retryEntryKey(messageID, recipientID), map[string]any{
		"enqueued_at": now.UnixMilli(),
		"attempts":    0,
	})
	pipe.ZAdd(ctx, retryDueKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: retryMember(messageID, recipientID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retry ledger: record: %w", err)
	}
	return nil
}

func (l *RedisRetryLedger) Acknowledge(ctx context.Context, messageID, recipientID int64) error {
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, retryEntryKey(messageID, recipientID))
	pipe.ZRem(ctx, retryDueKey, retryMember(messageID, recipientID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retry ledger: acknowledge: %w", err)
	}
	return nil
}

// SweepDue returns entries whose linear backoff window has elapsed,
// incrementing attempts; entries that just crossed the cap are dropped
// instead of returned.
func (l *RedisRetryLedger) SweepDue(ctx context.Context, now time.Time) ([]delivery.RetryEntry, error) {
	// Everything enqueued before now-backoff is at least one backoff old.
	maxScore := strconv.FormatInt(now.Add(-l.backoff).UnixMilli(), 10)
	members, err := l.client.ZRangeByScore(ctx, retryDueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("retry ledger: sweep: %w", err)
	}

	var due []delivery.RetryEntry
	for _, member := range members {
		msgID, uid, ok := parseRetryMember(member)
		if !ok {
			l.client.ZRem(ctx, retryDueKey, member)
			continue
		}
		key := retryEntryKey(msgID, uid)
		fields, err := l.client.HGetAll(ctx, key).Result()
		if err != nil || len(fields) == 0 {
			l.client.ZRem(ctx, retryDueKey, member)
			continue
		}
		attempts, _ := strconv.Atoi(fields["attempts"])
		enqueuedMs, _ := strconv.ParseInt(fields["enqueued_at"], 10, 64)
		entry := delivery.RetryEntry{
			MessageID:   msgID,
			RecipientID: uid,
			EnqueuedAt:  time.UnixMilli(enqueuedMs),
			Attempts:    attempts,
		}
		if !entry.Due(now, l.backoff) {
			continue
		}
		if attempts >= l.maxAttempts {
			// Cap exceeded: the recipient gets the message via push
			// fallback or a later full sync.
			pipe := l.client.TxPipeline()
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, retryDueKey, member)
			_, _ = pipe.Exec(ctx)
			continue
		}
		if err := l.client.HIncrBy(ctx, key, "attempts", 1).Err(); err != nil {
			continue
		}
		entry.Attempts = attempts + 1
		due = append(due, entry)
	}
	return due, nil
}

func (l *RedisRetryLedger) Pending(ctx context.Context) (int, error) {
	n, err := l.client.ZCard(ctx, retryDueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("retry ledger: pending: %w", err)
	}
	return int(n), nil
}

func parseRetryMember(member string) (int64, int64, bool) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	msgID, err1 := strconv.ParseInt(parts[0], 10, 64)
	uid, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return msgID, uid, true
}
