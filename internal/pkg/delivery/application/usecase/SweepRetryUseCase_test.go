package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/persistence/repository/adapter"
)

type sweepFixture struct {
	store    *adapter.MemMessageStore
	presence *adapter.MemPresenceStore
	ledger   *adapter.MemRetryLedger
	pusher   *fakePusher
	uc       *SweepRetryUseCase
}

// newSweepFixture uses a zero-ish backoff so freshly recorded entries
// are immediately due.
func newSweepFixture(maxAttempts int) *sweepFixture {
	f := &sweepFixture{
		store:    adapter.NewMemMessageStore(),
		presence: adapter.NewMemPresenceStore(),
		ledger:   adapter.NewMemRetryLedger(maxAttempts, time.Nanosecond),
		pusher:   newFakePusher(),
	}
	f.uc = NewSweepRetryUseCase(f.ledger, f.store, f.presence, f.pusher)
	return f
}

func (f *sweepFixture) futureNow() time.Time {
	return time.Now().UTC().Add(time.Minute)
}

func TestSweepRepushesReachableRecipient(t *testing.T) {
	f := newSweepFixture(3)
	msg := seedMessage(t, f.store, 1, 2)
	require.NoError(t, f.ledger.Record(context.Background(), msg.ID, 2))
	require.NoError(t, f.presence.SetStatus(context.Background(), delivery.PresenceEntry{
		UserID: 2, DeviceID: "dev-b", Status: delivery.PresenceOnline,
	}))

	pushed, err := f.uc.Execute(context.Background(), f.futureNow())
	require.NoError(t, err)
	assert.Equal(t, 1, pushed)
	assert.Equal(t, 1, f.pusher.count("dev-b"))
}

func TestSweepKeepsEntryWhileOffline(t *testing.T) {
	f := newSweepFixture(5)
	msg := seedMessage(t, f.store, 1, 2)
	require.NoError(t, f.ledger.Record(context.Background(), msg.ID, 2))

	pushed, err := f.uc.Execute(context.Background(), f.futureNow())
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestSweepRetiresTerminalMessage(t *testing.T) {
	f := newSweepFixture(3)
	msg := seedMessage(t, f.store, 1, 2)
	require.NoError(t, f.ledger.Record(context.Background(), msg.ID, 2))

	_, ok, err := f.store.CompareAndSwap(context.Background(), msg.ID, 0, func(m *delivery.Message) error {
		return m.Recall(1, time.Now().UTC())
	})
	require.NoError(t, err)
	require.True(t, ok)

	pushed, err := f.uc.Execute(context.Background(), f.futureNow())
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pending, "recalled message must never be redelivered")
}

func TestSweepRetiresVanishedMessage(t *testing.T) {
	f := newSweepFixture(3)
	require.NoError(t, f.ledger.Record(context.Background(), 404, 2))

	pushed, err := f.uc.Execute(context.Background(), f.futureNow())
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestSweepBoundedAttempts(t *testing.T) {
	// After the attempt cap the entry is dropped even though the
	// recipient never acked.
	f := newSweepFixture(3)
	msg := seedMessage(t, f.store, 1, 2)
	require.NoError(t, f.ledger.Record(context.Background(), msg.ID, 2))
	require.NoError(t, f.presence.SetStatus(context.Background(), delivery.PresenceEntry{
		UserID: 2, DeviceID: "dev-b", Status: delivery.PresenceOnline,
	}))

	for i := 0; i < 5; i++ {
		_, err := f.uc.Execute(context.Background(), f.futureNow())
		require.NoError(t, err)
	}

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 3, f.pusher.count("dev-b"), "exactly maxAttempts re-pushes before the drop")
}

func TestAcknowledgeStopsRetries(t *testing.T) {
	f := newSweepFixture(3)
	msg := seedMessage(t, f.store, 1, 2)
	require.NoError(t, f.ledger.Record(context.Background(), msg.ID, 2))
	require.NoError(t, f.ledger.Acknowledge(context.Background(), msg.ID, 2))

	pushed, err := f.uc.Execute(context.Background(), f.futureNow())
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)
	assert.Equal(t, 0, f.pusher.count("dev-b"))
}
