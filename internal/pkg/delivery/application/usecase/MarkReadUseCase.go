package usecase

import (
	"context"
	"time"

	delivery "go-courier/internal/pkg/delivery/application/domain"
)

// MarkReadInput identifies the message and the reader.
type MarkReadInput struct {
	MessageID int64
	ReaderID  int64
}

// MarkReadUseCase records a read receipt and, for self-destructing
// messages, arms the shortened destruct deadline. Reading twice is a
// no-op; reading a recalled or destroyed message is an idempotent
// success.
type MarkReadUseCase struct {
	Coordinator *MutationCoordinator
}

func NewMarkReadUseCase(coord *MutationCoordinator) *MarkReadUseCase {
	return &MarkReadUseCase{Coordinator: coord}
}

func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (*delivery.Message, error) {
	current, err := uc.Coordinator.Store.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorizeReader(ctx, current, in.ReaderID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return uc.Coordinator.Execute(ctx, in.MessageID, Mutation{
		Name:    "mark_read",
		ActorID: in.ReaderID,
		Apply: func(m *delivery.Message) (bool, error) {
			return m.MarkRead(now)
		},
		Event: func(m *delivery.Message, recipients []int64) (string, any) {
			return delivery.EventMessageRead, delivery.MessageReadEvent{
				MessageID:    m.ID,
				ReaderID:     in.ReaderID,
				SenderID:     m.SenderID,
				RecipientIDs: recipients,
				ReadAt:       now,
			}
		},
	})
}

// authorizeReader allows the direct counterpart, or any current room
// member other than the sender.
func (uc *MarkReadUseCase) authorizeReader(ctx context.Context, m *delivery.Message, readerID int64) error {
	if readerID == m.SenderID {
		return delivery.ErrNotRecipient
	}
	if m.RecipientID != nil {
		if *m.RecipientID != readerID {
			return delivery.ErrNotRecipient
		}
		return nil
	}
	room, err := uc.Coordinator.Rooms.Resolve(ctx, *m.RoomID)
	if err != nil {
		return err
	}
	if !room.HasMember(readerID) {
		return delivery.ErrNotRecipient
	}
	return nil
}
