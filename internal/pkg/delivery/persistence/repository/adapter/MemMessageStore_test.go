package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

func storeMessage(t *testing.T, s *MemMessageStore, destructAt *time.Time) int64 {
	t.Helper()
	recipient := int64(2)
	m, err := delivery.NewMessage(delivery.Message{
		ConversationID: "conv-1",
		SenderID:       1,
		RecipientID:    &recipient,
		Ciphertext:     []byte("opaque"),
		IV:             []byte("nonce"),
		KeyID:          "key-1",
	})
	require.NoError(t, err)
	m.DestructAt = destructAt
	id, err := s.Create(context.Background(), *m)
	require.NoError(t, err)
	return id
}

func TestCASSingleWinnerPerVersion(t *testing.T) {
	// Many writers race the same expected version; exactly one swap may
	// win and the version advances exactly once.
	s := NewMemMessageStore()
	id := storeMessage(t, s, nil)

	const writers = 16
	var wg sync.WaitGroup
	wins := make(chan int64, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok, err := s.CompareAndSwap(context.Background(), id, 0, func(m *delivery.Message) error {
				m.MarkSent()
				return nil
			})
			assert.NoError(t, err)
			if ok {
				wins <- v
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []int64
	for v := range wins {
		winners = append(winners, v)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, int64(1), winners[0])

	stored, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestCASMutateErrorAborts(t *testing.T) {
	s := NewMemMessageStore()
	id := storeMessage(t, s, nil)

	_, ok, err := s.CompareAndSwap(context.Background(), id, 0, func(m *delivery.Message) error {
		m.Status = delivery.MessageStatusRead
		return delivery.ErrTerminalState
	})
	assert.ErrorIs(t, err, delivery.ErrTerminalState)
	assert.False(t, ok)

	stored, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusSending, stored.Status, "failed mutate leaves no side effects")
	assert.Equal(t, int64(0), stored.Version)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	s := NewMemMessageStore()
	id := storeMessage(t, s, nil)

	m, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	m.Status = delivery.MessageStatusRecalled

	again, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusSending, again.Status)
}

func TestListDestructDue(t *testing.T) {
	s := NewMemMessageStore()
	now := time.Now().UTC()
	past1 := now.Add(-2 * time.Minute)
	past2 := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	oldest := storeMessage(t, s, &past1)
	newer := storeMessage(t, s, &past2)
	storeMessage(t, s, &future)
	storeMessage(t, s, nil)

	due, err := s.ListDestructDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, oldest, due[0].ID, "oldest deadline first")
	assert.Equal(t, newer, due[1].ID)

	limited, err := s.ListDestructDue(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, oldest, limited[0].ID)
}

func TestListDestructDueSkipsTerminal(t *testing.T) {
	s := NewMemMessageStore()
	past := time.Now().UTC().Add(-time.Minute)
	id := storeMessage(t, s, &past)

	_, ok, err := s.CompareAndSwap(context.Background(), id, 0, func(m *delivery.Message) error {
		return m.Destruct(time.Now().UTC())
	})
	require.NoError(t, err)
	require.True(t, ok)

	due, err := s.ListDestructDue(context.Background(), time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDirectRoomOrderIndependent(t *testing.T) {
	r := NewMemRoomRepository()
	created, err := r.CreateDirect(context.Background(), 7, 3)
	require.NoError(t, err)

	found, err := r.ResolveDirect(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// Creating the same pair again returns the existing room.
	again, err := r.CreateDirect(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestPresenceSweepRemovesStale(t *testing.T) {
	p := NewMemPresenceStore()
	stale := time.Now().UTC().Add(-time.Hour)
	fresh := time.Now().UTC()

	require.NoError(t, p.SetStatus(context.Background(), delivery.PresenceEntry{
		UserID: 1, DeviceID: "old", Status: delivery.PresenceOnline, LastActiveAt: stale,
	}))
	require.NoError(t, p.SetStatus(context.Background(), delivery.PresenceEntry{
		UserID: 1, DeviceID: "new", Status: delivery.PresenceOnline, LastActiveAt: fresh,
	}))

	removed, err := p.Sweep(context.Background(), time.Now().UTC().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	devices, err := p.ReachableDevices(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, devices)
}

func TestRetryLedgerExactReDrives(t *testing.T) {
	// With a cap of 3 the entry is re-driven at attempts 1, 2 and 3;
	// the sweep after that drops it instead of returning it.
	l := NewMemRetryLedger(3, time.Millisecond)
	require.NoError(t, l.Record(context.Background(), 10, 2))

	now := time.Now().UTC()
	drives := 0
	for i := 0; i < 6; i++ {
		now = now.Add(time.Minute)
		due, err := l.SweepDue(context.Background(), now)
		require.NoError(t, err)
		drives += len(due)
	}

	assert.Equal(t, 3, drives)
	pending, err := l.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}
