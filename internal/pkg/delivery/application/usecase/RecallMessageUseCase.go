package usecase

import (
	"context"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

// RecallMessageInput identifies the message and the user recalling it.
type RecallMessageInput struct {
	MessageID int64
	UserID    int64
}

// RecallMessageUseCase retracts a delivered message. Only the sender
// may recall; a message already recalled or destroyed counts as
// success.
type RecallMessageUseCase struct {
	Coordinator *MutationCoordinator
}

func NewRecallMessageUseCase(coord *MutationCoordinator) *RecallMessageUseCase {
	return &RecallMessageUseCase{Coordinator: coord}
}

func (uc *RecallMessageUseCase) Execute(ctx context.Context, in RecallMessageInput) (*delivery.Message, error) {
	current, err := uc.Coordinator.Store.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if current.SenderID != in.UserID {
		return nil, delivery.ErrNotSender
	}

	now := time.Now().UTC()
	return uc.Coordinator.Execute(ctx, in.MessageID, Mutation{
		Name:    "recall",
		ActorID: in.UserID,
		Apply: func(m *delivery.Message) (bool, error) {
			if err := m.Recall(in.UserID, now); err != nil {
				return false, err
			}
			return true, nil
		},
		Event: func(m *delivery.Message, recipients []int64) (string, any) {
			return delivery.EventMessageRecalled, delivery.MessageRecalledEvent{
				MessageID:    m.ID,
				RecalledBy:   in.UserID,
				RecipientIDs: recipients,
				OccurredAt:   now,
			}
		},
	})
}
