package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/persistence/repository/adapter"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// contendedStore makes every CompareAndSwap lose, simulating a writer
// that always gets beaten to the row.
type contendedStore struct {
	repository.MessageStore
	attempts int
}

func (s *contendedStore) CompareAndSwap(ctx context.Context, id int64, expectedVersion int64, mutate repository.MutatorFn) (int64, bool, error) {
	s.attempts++
	return 0, false, nil
}

func seedMessage(t *testing.T, store repository.MessageStore, senderID int64, recipientID int64) *delivery.Message {
	t.Helper()
	m, err := delivery.NewMessage(delivery.Message{
		ConversationID: "conv-1",
		SenderID:       senderID,
		RecipientID:    &recipientID,
		Ciphertext:     []byte("opaque"),
		IV:             []byte("nonce"),
		KeyID:          "key-1",
	})
	require.NoError(t, err)
	id, err := store.Create(context.Background(), *m)
	require.NoError(t, err)
	m.ID = id
	return m
}

func newTestCoordinator(store repository.MessageStore) *MutationCoordinator {
	c := NewMutationCoordinator(store, adapter.NewMemRoomRepository(), nil)
	c.Backoff = time.Millisecond
	return c
}

func TestRecallRace(t *testing.T) {
	// Two concurrent recalls on the same version: one CAS wins, the
	// loser observes the terminal state and reports success without a
	// second version bump.
	store := adapter.NewMemMessageStore()
	msg := seedMessage(t, store, 1, 2)
	uc := NewRecallMessageUseCase(newTestCoordinator(store))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 1})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored, err := store.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusRecalled, stored.Status)
	assert.Equal(t, int64(1), stored.Version, "only one swap may bump the version")
}

func TestReadThenRecallBothPersist(t *testing.T) {
	store := adapter.NewMemMessageStore()
	msg := seedMessage(t, store, 1, 2)
	coord := newTestCoordinator(store)

	read, err := NewMarkReadUseCase(coord).Execute(context.Background(), MarkReadInput{MessageID: msg.ID, ReaderID: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), read.Version)

	recalled, err := NewRecallMessageUseCase(coord).Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), recalled.Version)

	stored, err := store.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusRecalled, stored.Status)
	assert.NotNil(t, stored.ReadAt, "read timestamp survives the recall")
	assert.NotNil(t, stored.RecalledAt)
}

func TestRecallTerminality(t *testing.T) {
	// Once recalled, every further mutation is a success-as-no-op and
	// the stored state never changes again.
	store := adapter.NewMemMessageStore()
	msg := seedMessage(t, store, 1, 2)
	coord := newTestCoordinator(store)

	_, err := NewRecallMessageUseCase(coord).Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 1})
	require.NoError(t, err)

	again, err := NewRecallMessageUseCase(coord).Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusRecalled, again.Status)

	read, err := NewMarkReadUseCase(coord).Execute(context.Background(), MarkReadInput{MessageID: msg.ID, ReaderID: 2})
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusRecalled, read.Status)
	assert.Equal(t, int64(1), read.Version, "no-ops never bump the version")
}

func TestDestructAfterRecallNoOp(t *testing.T) {
	// Recall and destruct are mutually exclusive: the destruct observes
	// the recalled message, reports success and leaves status and
	// version untouched.
	store := adapter.NewMemMessageStore()
	msg := seedMessage(t, store, 1, 2)
	coord := newTestCoordinator(store)

	_, err := NewRecallMessageUseCase(coord).Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 1})
	require.NoError(t, err)

	destructed, err := NewDestructMessageUseCase(coord).Execute(context.Background(), DestructMessageInput{MessageID: msg.ID})
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusRecalled, destructed.Status, "status must not change after RECALLED")

	stored, err := store.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusRecalled, stored.Status)
	assert.Equal(t, int64(1), stored.Version, "no-op must not bump the version")
}

func TestRetryExhaustion(t *testing.T) {
	inner := adapter.NewMemMessageStore()
	msg := seedMessage(t, inner, 1, 2)
	store := &contendedStore{MessageStore: inner}
	uc := NewRecallMessageUseCase(newTestCoordinator(store))

	_, err := uc.Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 1})
	assert.ErrorIs(t, err, delivery.ErrConcurrentModificationExceeded)
	assert.Equal(t, 3, store.attempts)

	stored, err := inner.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusSending, stored.Status, "stored state unchanged after exhaustion")
	assert.Equal(t, int64(0), stored.Version)
}

func TestRecallOnlyBySender(t *testing.T) {
	store := adapter.NewMemMessageStore()
	msg := seedMessage(t, store, 1, 2)
	uc := NewRecallMessageUseCase(newTestCoordinator(store))

	_, err := uc.Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 2})
	assert.ErrorIs(t, err, delivery.ErrNotSender)
}

func TestMarkReadOnlyByRecipient(t *testing.T) {
	store := adapter.NewMemMessageStore()
	msg := seedMessage(t, store, 1, 2)
	uc := NewMarkReadUseCase(newTestCoordinator(store))

	_, err := uc.Execute(context.Background(), MarkReadInput{MessageID: msg.ID, ReaderID: 1})
	assert.ErrorIs(t, err, delivery.ErrNotRecipient)

	_, err = uc.Execute(context.Background(), MarkReadInput{MessageID: msg.ID, ReaderID: 9})
	assert.ErrorIs(t, err, delivery.ErrNotRecipient)
}

func TestConcurrentMixedMutations(t *testing.T) {
	// Hammer one message with reads and recalls; the version must equal
	// the number of successful swaps and the final state must be
	// consistent (recalled, read mark optional depending on ordering).
	store := adapter.NewMemMessageStore()
	msg := seedMessage(t, store, 1, 2)
	coord := newTestCoordinator(store)
	coord.MaxAttempts = 10

	readUC := NewMarkReadUseCase(coord)
	recallUC := NewRecallMessageUseCase(coord)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = readUC.Execute(context.Background(), MarkReadInput{MessageID: msg.ID, ReaderID: 2})
		}()
		go func() {
			defer wg.Done()
			_, _ = recallUC.Execute(context.Background(), RecallMessageInput{MessageID: msg.ID, UserID: 1})
		}()
	}
	wg.Wait()

	stored, err := store.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.MessageStatusRecalled, stored.Status)
	assert.LessOrEqual(t, stored.Version, int64(2), "at most one read swap and one recall swap")
	assert.GreaterOrEqual(t, stored.Version, int64(1))
}
