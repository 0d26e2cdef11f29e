package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	cacheport "go-courier/internal/infrastructure/cache/port"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

const (
	messageCacheKeyFmt = "courier:msg:%d"
	messageCacheTTL    = 24 * time.Hour
)

// CachedMessageStore layers a read cache over a MessageStore. Reads go
// through the cache; a successful compare-and-swap drops the cached
// rendering best-effort, so a failed invalidation never rolls back or
// fails the mutation.
type CachedMessageStore struct {
	inner repository.MessageStore
	cache cacheport.Cache
}

func NewCachedMessageStore(inner repository.MessageStore, cache cacheport.Cache) *CachedMessageStore {
	return &CachedMessageStore{inner: inner, cache: cache}
}

var _ repository.MessageStore = (*CachedMessageStore)(nil)

func messageCacheKey(id int64) string {
	return fmt.Sprintf(messageCacheKeyFmt, id)
}

func (s *CachedMessageStore) Create(ctx context.Context, m delivery.Message) (int64, error) {
	return s.inner.Create(ctx, m)
}

func (s *CachedMessageStore) GetByID(ctx context.Context, id int64) (*delivery.Message, error) {
	if raw, err := s.cache.Get(ctx, messageCacheKey(id)); err == nil && raw != "" {
		var m delivery.Message
		if jerr := json.Unmarshal([]byte(raw), &m); jerr == nil {
			return &m, nil
		}
	}

	m, err := s.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, jerr := json.Marshal(m); jerr == nil {
		if cerr := s.cache.Set(ctx, messageCacheKey(id), string(raw), messageCacheTTL); cerr != nil {
			logrus.WithField("message_id", id).WithError(cerr).Debug("message cache set failed")
		}
	}
	return m, nil
}

func (s *CachedMessageStore) CompareAndSwap(ctx context.Context, id int64, expectedVersion int64, mutate repository.MutatorFn) (int64, bool, error) {
	newVersion, ok, err := s.inner.CompareAndSwap(ctx, id, expectedVersion, mutate)
	if err == nil {
		// Drop the cached copy on success so readers see the new state,
		// and on a version conflict so the retry re-reads fresh instead
		// of looping on a stale cached version.
		if _, cerr := s.cache.Del(ctx, messageCacheKey(id)); cerr != nil {
			logrus.WithField("message_id", id).WithError(cerr).Warn("message cache invalidation failed")
		}
	}
	return newVersion, ok, err
}

func (s *CachedMessageStore) ListDestructDue(ctx context.Context, now time.Time, limit int) ([]delivery.Message, error) {
	return s.inner.ListDestructDue(ctx, now, limit)
}
