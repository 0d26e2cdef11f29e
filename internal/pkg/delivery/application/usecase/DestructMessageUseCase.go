package usecase

import (
	"context"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

// DestructMessageInput identifies the message to wipe. ActorID is zero
// when the destruct sweeper fires on a deadline rather than a user
// request.
type DestructMessageInput struct {
	MessageID int64
	ActorID   int64
}

// DestructMessageUseCase wipes the cipher payload and finalizes the
// message. Used both by explicit user deletion and by the timed
// self-destruct sweep; re-destruction is an idempotent success.
type DestructMessageUseCase struct {
	Coordinator *MutationCoordinator
}

func NewDestructMessageUseCase(coord *MutationCoordinator) *DestructMessageUseCase {
	return &DestructMessageUseCase{Coordinator: coord}
}

func (uc *DestructMessageUseCase) Execute(ctx context.Context, in DestructMessageInput) (*delivery.Message, error) {
	now := time.Now().UTC()
	return uc.Coordinator.Execute(ctx, in.MessageID, Mutation{
		Name:    "destruct",
		ActorID: in.ActorID,
		Apply: func(m *delivery.Message) (bool, error) {
			if err := m.Destruct(now); err != nil {
				return false, err
			}
			return true, nil
		},
		Event: func(m *delivery.Message, recipients []int64) (string, any) {
			return delivery.EventMessageDestructed, delivery.MessageDestructedEvent{
				MessageID:    m.ID,
				RecipientIDs: recipients,
				OccurredAt:   now,
			}
		},
	})
}
