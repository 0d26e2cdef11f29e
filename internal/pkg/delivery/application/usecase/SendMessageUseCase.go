package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	qport "go-courier/internal/infrastructure/queue/port"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// DispatchTaskType is the queue task name for the fan-out pipeline.
const DispatchTaskType = "delivery:dispatch"

// DispatchTaskPayload is the JSON envelope transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type DispatchTaskPayload struct {
	MessageID   int64  `json:"messageId"`
	SenderID    int64  `json:"senderId"`
	RoomID      *int64 `json:"roomId,omitempty"`
	RecipientID *int64 `json:"recipientId,omitempty"`
}

// SendMessageInput carries an already-encrypted message from the edge.
// Exactly one of RecipientID and RoomID must be set.
type SendMessageInput struct {
	ConversationID string
	SenderID       int64
	RecipientID    *int64
	RoomID         *int64
	Ciphertext     []byte
	IV             []byte
	AuthTag        []byte
	KeyID          string
	Algorithm      delivery.Algorithm
	ContentType    string
	DestructTimer  time.Duration
}

// SendMessageUseCase accepts an encrypted envelope, persists it in
// SENDING state and hands delivery to the background queue. The caller
// gets its acknowledgment as soon as the row exists; fan-out latency
// never blocks the ingress path.
type SendMessageUseCase struct {
	Store repository.MessageStore
	Rooms repository.RoomResolver
	Queue qport.Client
}

func NewSendMessageUseCase(store repository.MessageStore, rooms repository.RoomResolver, queue qport.Client) *SendMessageUseCase {
	return &SendMessageUseCase{Store: store, Rooms: rooms, Queue: queue}
}

// Execute validates, persists and enqueues one message.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*delivery.Message, error) {
	if in.RoomID != nil {
		room, err := uc.Rooms.Resolve(ctx, *in.RoomID)
		if err != nil {
			return nil, err
		}
		if !room.HasMember(in.SenderID) {
			return nil, delivery.ErrNotRecipient
		}
	}

	msg, err := delivery.NewMessage(delivery.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		RecipientID:    in.RecipientID,
		RoomID:         in.RoomID,
		Ciphertext:     in.Ciphertext,
		IV:             in.IV,
		AuthTag:        in.AuthTag,
		KeyID:          in.KeyID,
		Algorithm:      in.Algorithm,
		ContentType:    in.ContentType,
		DestructTimer:  in.DestructTimer,
	})
	if err != nil {
		return nil, err
	}

	id, err := uc.Store.Create(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id

	payload, err := json.Marshal(DispatchTaskPayload{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		RoomID:      msg.RoomID,
		RecipientID: msg.RecipientID,
	})
	if err != nil {
		return nil, fmt.Errorf("send: encode dispatch payload: %w", err)
	}

	if _, err := uc.Queue.Enqueue(ctx, qport.Task{Type: DispatchTaskType, Payload: payload}, qport.EnqueueOption{
		Queue:    "delivery",
		MaxRetry: 5,
	}); err != nil {
		// The row is durable; a stuck enqueue only delays delivery. The
		// retry sweeper does not cover this hole, so surface it.
		logrus.WithField("message_id", msg.ID).WithError(err).Error("dispatch enqueue failed")
		return nil, fmt.Errorf("send: enqueue dispatch: %w", err)
	}

	return msg, nil
}
