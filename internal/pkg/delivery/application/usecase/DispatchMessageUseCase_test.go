package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/persistence/repository/adapter"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// fakePusher records which devices were pushed to.
type fakePusher struct {
	mu     sync.Mutex
	pushed map[string]int
	refuse bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushed: make(map[string]int)}
}

func (p *fakePusher) PushDevice(deviceID string, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[deviceID]++
	return !p.refuse
}

func (p *fakePusher) count(deviceID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushed[deviceID]
}

// fakeGateway records offline notifications per user.
type fakeGateway struct {
	mu       sync.Mutex
	notified map[int64]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{notified: make(map[int64]int)}
}

func (g *fakeGateway) Notify(ctx context.Context, userID int64, title, body string, extra map[string]string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notified[userID]++
	return true, nil
}

func (g *fakeGateway) count(userID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.notified[userID]
}

type dispatchFixture struct {
	store    *adapter.MemMessageStore
	rooms    *adapter.MemRoomRepository
	presence *adapter.MemPresenceStore
	ledger   *adapter.MemRetryLedger
	pusher   *fakePusher
	gateway  *fakeGateway
	uc       *DispatchMessageUseCase
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		store:    adapter.NewMemMessageStore(),
		rooms:    adapter.NewMemRoomRepository(),
		presence: adapter.NewMemPresenceStore(),
		ledger:   adapter.NewMemRetryLedger(3, 0),
		pusher:   newFakePusher(),
		gateway:  newFakeGateway(),
	}
	f.uc = NewDispatchMessageUseCase(f.store, f.rooms, f.presence, f.ledger, f.pusher, f.gateway, nil)
	return f
}

func (f *dispatchFixture) setOnline(t *testing.T, userID int64, deviceID string, status delivery.PresenceStatus) {
	t.Helper()
	err := f.presence.SetStatus(context.Background(), delivery.PresenceEntry{
		UserID:   userID,
		DeviceID: deviceID,
		Node:     "node-1",
		Status:   status,
	})
	require.NoError(t, err)
}

func TestDispatchDirectOnline(t *testing.T) {
	f := newDispatchFixture()
	msg := seedMessage(t, f.store, 1, 2)
	f.setOnline(t, 2, "dev-b", delivery.PresenceOnline)

	err := f.uc.Execute(context.Background(), DispatchInput{MessageID: msg.ID, SenderID: 1, RecipientID: msg.RecipientID})
	require.NoError(t, err)

	assert.Equal(t, 1, f.pusher.count("dev-b"))
	assert.Equal(t, 0, f.gateway.count(2))

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	stored, err := f.store.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusSent, stored.Status)
}

func TestDispatchGroupMixedPresence(t *testing.T) {
	// Group {A,B,C,D}, sender A, B online, C and D offline: push to B
	// only, notify C and D, one ledger entry for B.
	f := newDispatchFixture()
	room, err := f.rooms.CreateGroup(context.Background(), []int64{1, 2, 3, 4})
	require.NoError(t, err)

	m, err := delivery.NewMessage(delivery.Message{
		ConversationID: "conv-g",
		SenderID:       1,
		RoomID:         &room.ID,
		Ciphertext:     []byte("opaque"),
		IV:             []byte("nonce"),
		KeyID:          "key-1",
	})
	require.NoError(t, err)
	id, err := f.store.Create(context.Background(), *m)
	require.NoError(t, err)

	f.setOnline(t, 2, "dev-b", delivery.PresenceOnline)

	err = f.uc.Execute(context.Background(), DispatchInput{MessageID: id, SenderID: 1, RoomID: &room.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, f.pusher.count("dev-b"))
	assert.Equal(t, 1, f.gateway.count(3))
	assert.Equal(t, 1, f.gateway.count(4))
	assert.Equal(t, 0, f.gateway.count(1), "sender never gets a notification")
	assert.Equal(t, 0, f.gateway.count(2))

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestDispatchInvisibleStillDelivered(t *testing.T) {
	f := newDispatchFixture()
	msg := seedMessage(t, f.store, 1, 2)
	f.setOnline(t, 2, "dev-b", delivery.PresenceInvisible)

	err := f.uc.Execute(context.Background(), DispatchInput{MessageID: msg.ID, SenderID: 1, RecipientID: msg.RecipientID})
	require.NoError(t, err)

	assert.Equal(t, 1, f.pusher.count("dev-b"))
	assert.Equal(t, 0, f.gateway.count(2))
}

func TestDispatchIdempotent(t *testing.T) {
	// The ingress queue is at-least-once; a duplicate event must not
	// grow the ledger or double-advance the status.
	f := newDispatchFixture()
	msg := seedMessage(t, f.store, 1, 2)
	f.setOnline(t, 2, "dev-b", delivery.PresenceOnline)

	for i := 0; i < 2; i++ {
		err := f.uc.Execute(context.Background(), DispatchInput{MessageID: msg.ID, SenderID: 1, RecipientID: msg.RecipientID})
		require.NoError(t, err)
	}

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "duplicate dispatch must not grow the ledger")

	stored, err := f.store.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusSent, stored.Status)
	assert.Equal(t, int64(1), stored.Version, "second dispatch skips the sent swap")
}

func TestDispatchMultiDeviceFanOut(t *testing.T) {
	f := newDispatchFixture()
	msg := seedMessage(t, f.store, 1, 2)
	f.setOnline(t, 2, "dev-phone", delivery.PresenceOnline)
	f.setOnline(t, 2, "dev-laptop", delivery.PresenceAway)

	err := f.uc.Execute(context.Background(), DispatchInput{MessageID: msg.ID, SenderID: 1, RecipientID: msg.RecipientID})
	require.NoError(t, err)

	assert.Equal(t, 1, f.pusher.count("dev-phone"))
	assert.Equal(t, 1, f.pusher.count("dev-laptop"))

	// One ledger entry per recipient, not per device.
	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestDispatchVanishedMessage(t *testing.T) {
	f := newDispatchFixture()
	err := f.uc.Execute(context.Background(), DispatchInput{MessageID: 999, SenderID: 1})
	assert.ErrorIs(t, err, delivery.ErrMessageNotFound)
}

// wrappingStore decorates lookups the way a caching layer would,
// wrapping sentinel errors instead of returning them bare.
type wrappingStore struct {
	repository.MessageStore
}

func (s *wrappingStore) GetByID(ctx context.Context, id int64) (*delivery.Message, error) {
	m, err := s.MessageStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("decorated: %w", err)
	}
	return m, nil
}

func TestDispatchVanishedMessageWrappedSentinel(t *testing.T) {
	f := newDispatchFixture()
	f.uc.Store = &wrappingStore{MessageStore: f.store}

	err := f.uc.Execute(context.Background(), DispatchInput{MessageID: 999, SenderID: 1})
	assert.ErrorIs(t, err, delivery.ErrMessageNotFound)
}

func TestDispatchEmptyRecipients(t *testing.T) {
	// A solo room dispatch completes as a no-op.
	f := newDispatchFixture()
	room, err := f.rooms.CreateGroup(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.NoError(t, f.rooms.RemoveMember(context.Background(), room.ID, 2))

	m, err := delivery.NewMessage(delivery.Message{
		ConversationID: "conv-solo",
		SenderID:       1,
		RoomID:         &room.ID,
		Ciphertext:     []byte("opaque"),
		IV:             []byte("nonce"),
		KeyID:          "key-1",
	})
	require.NoError(t, err)
	id, err := f.store.Create(context.Background(), *m)
	require.NoError(t, err)

	err = f.uc.Execute(context.Background(), DispatchInput{MessageID: id, SenderID: 1, RoomID: &room.ID})
	require.NoError(t, err)

	pending, err := f.ledger.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}
