package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	eventport "go-courier/internal/infrastructure/eventbus/port"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

const (
	defaultMaxCASAttempts = 3
	defaultCASBackoff     = 50 * time.Millisecond
)

// Mutation is one status change applied through the optimistic-lock
// protocol. Apply edits a fresh copy of the record; changed=false means
// the desired state already holds and no swap is needed. Returning
// delivery.ErrTerminalState marks the mutation incompatible with the
// stored state, which the coordinator reports as an idempotent success.
type Mutation struct {
	Name string

	// ActorID is the user driving the mutation; excluded from the
	// notified recipient set.
	ActorID int64

	Apply func(m *delivery.Message) (changed bool, err error)

	// Event builds the domain event emitted after a successful swap.
	// Nil payload suppresses emission.
	Event func(m *delivery.Message, recipients []int64) (string, any)
}

// MutationCoordinator runs the shared recall/read/destruct protocol:
// read, apply to a copy, compare-and-swap with the version just read,
// and on conflict back off linearly and retry from the top. Attempts
// are bounded; exhausting them surfaces
// delivery.ErrConcurrentModificationExceeded and leaves the record
// consistent.
type MutationCoordinator struct {
	Store       repository.MessageStore
	Rooms       repository.RoomResolver
	Bus         eventport.Bus
	MaxAttempts int
	Backoff     time.Duration
}

func NewMutationCoordinator(store repository.MessageStore, rooms repository.RoomResolver, bus eventport.Bus) *MutationCoordinator {
	return &MutationCoordinator{
		Store:       store,
		Rooms:       rooms,
		Bus:         bus,
		MaxAttempts: defaultMaxCASAttempts,
		Backoff:     defaultCASBackoff,
	}
}

// Execute drives mut to completion. The returned message reflects the
// stored state after the mutation (or the terminal state that made it a
// no-op).
func (c *MutationCoordinator) Execute(ctx context.Context, messageID int64, mut Mutation) (*delivery.Message, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxCASAttempts
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultCASBackoff
	}

	log := logrus.WithFields(logrus.Fields{
		"message_id": messageID,
		"mutation":   mut.Name,
	})

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// Linear backoff: attempt * fixed delay, counted from the
			// first retry.
			if err := sleepCtx(ctx, time.Duration(attempt-1)*backoff); err != nil {
				return nil, err
			}
		}

		m, err := c.Store.GetByID(ctx, messageID)
		if err != nil {
			return nil, err
		}

		// Probe against the copy first so a terminal or already-applied
		// state short-circuits without a version bump.
		probe := *m
		changed, err := mut.Apply(&probe)
		if errors.Is(err, delivery.ErrTerminalState) {
			log.WithField("status", m.Status.String()).Debug("mutation no-op on terminal message")
			return m, nil
		}
		if err != nil {
			return nil, err
		}
		if !changed {
			log.Debug("mutation already applied")
			return m, nil
		}

		var applied *delivery.Message
		newVersion, ok, err := c.Store.CompareAndSwap(ctx, messageID, m.Version, func(fresh *delivery.Message) error {
			if _, aerr := mut.Apply(fresh); aerr != nil {
				return aerr
			}
			applied = fresh
			return nil
		})
		if errors.Is(err, delivery.ErrTerminalState) {
			// Lost a race to a mutually exclusive mutation between the
			// read and the swap.
			return c.Store.GetByID(ctx, messageID)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			log.WithField("attempt", attempt).Debug("version conflict, retrying")
			continue
		}

		applied.Version = newVersion
		c.emit(ctx, mut, applied)
		return applied, nil
	}

	log.Warn("mutation exhausted optimistic retries")
	return nil, delivery.ErrConcurrentModificationExceeded
}

func (c *MutationCoordinator) emit(ctx context.Context, mut Mutation, m *delivery.Message) {
	if mut.Event == nil || c.Bus == nil {
		return
	}
	recipients, err := c.resolveRecipients(ctx, m, mut.ActorID)
	if err != nil {
		logrus.WithField("message_id", m.ID).WithError(err).Warn("recipient resolution for event failed")
	}
	name, payload := mut.Event(m, recipients)
	if payload == nil {
		return
	}
	c.Bus.Publish(ctx, eventport.Event{Name: name, Payload: payload})
}

// resolveRecipients expands the notified set at mutation time: the
// direct counterpart plus sender for private chats, the live member
// list minus the actor for rooms.
func (c *MutationCoordinator) resolveRecipients(ctx context.Context, m *delivery.Message, actorID int64) ([]int64, error) {
	if m.RoomID == nil {
		var out []int64
		for _, id := range []int64{m.SenderID, derefID(m.RecipientID)} {
			if id != 0 && id != actorID {
				out = append(out, id)
			}
		}
		return out, nil
	}
	room, err := c.Rooms.Resolve(ctx, *m.RoomID)
	if err != nil {
		return nil, err
	}
	return room.Recipients(actorID), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func derefID(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
