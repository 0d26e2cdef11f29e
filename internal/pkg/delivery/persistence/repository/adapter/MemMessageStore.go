package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// MemMessageStore is the in-process MessageStore used in single-node
// mode and by tests. The mutex spans the whole compare-and-swap so two
// swaps against the same expected version can never both win.
type MemMessageStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*delivery.Message
}

func NewMemMessageStore() *MemMessageStore {
	return &MemMessageStore{nextID: 1, byID: make(map[int64]*delivery.Message)}
}

var _ repository.MessageStore = (*MemMessageStore)(nil)

func (s *MemMessageStore) Create(_ context.Context, m delivery.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID
	s.nextID++
	m.Version = 0
	cp := m
	s.byID[m.ID] = &cp
	return m.ID, nil
}

func (s *MemMessageStore) GetByID(_ context.Context, id int64) (*delivery.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, delivery.ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemMessageStore) CompareAndSwap(_ context.Context, id int64, expectedVersion int64, mutate repository.MutatorFn) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return 0, false, delivery.ErrMessageNotFound
	}
	if stored.Version != expectedVersion {
		return 0, false, nil
	}
	cp := *stored
	if err := mutate(&cp); err != nil {
		return 0, false, err
	}
	cp.Version = expectedVersion + 1
	s.byID[id] = &cp
	return cp.Version, true, nil
}

func (s *MemMessageStore) ListDestructDue(_ context.Context, now time.Time, limit int) ([]delivery.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 1000
	}
	var out []delivery.Message
	for _, m := range s.byID {
		if m.Status.Terminal() {
			continue
		}
		if m.DestructAt != nil && !m.DestructAt.After(now) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DestructAt.Before(*out[j].DestructAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
