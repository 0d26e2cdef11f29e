package usecase

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	eventport "go-courier/internal/infrastructure/eventbus/port"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// controlFrame is the socket payload announcing a mutation to the
// affected recipients so their clients can update the rendered
// conversation.
type controlFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// EventBroadcaster turns domain events into real-time control frames
// for the recipients each event names. It is a best-effort subscriber:
// a recipient that misses a frame reconciles on its next fetch, so no
// failure here propagates anywhere.
type EventBroadcaster struct {
	Presence repository.PresenceStore
	Rooms    repository.RoomRepository
	Pusher   repository.ConnectionPusher
}

func NewEventBroadcaster(presence repository.PresenceStore, rooms repository.RoomRepository, pusher repository.ConnectionPusher) *EventBroadcaster {
	return &EventBroadcaster{Presence: presence, Rooms: rooms, Pusher: pusher}
}

// Register subscribes the broadcaster to every mutation event.
func (b *EventBroadcaster) Register(bus eventport.Bus) {
	bus.Subscribe(delivery.EventMessageRecalled, b.onRecalled)
	bus.Subscribe(delivery.EventMessageRead, b.onRead)
	bus.Subscribe(delivery.EventMessageDestructed, b.onDestructed)
	bus.Subscribe(delivery.EventPresenceChanged, b.onPresenceChanged)
}

func (b *EventBroadcaster) onRecalled(ctx context.Context, e eventport.Event) {
	p, ok := e.Payload.(delivery.MessageRecalledEvent)
	if !ok {
		return
	}
	b.push(ctx, p.RecipientIDs, controlFrame{
		Type:      "message_recalled",
		MessageID: p.MessageID,
		UserID:    p.RecalledBy,
	})
}

func (b *EventBroadcaster) onRead(ctx context.Context, e eventport.Event) {
	p, ok := e.Payload.(delivery.MessageReadEvent)
	if !ok {
		return
	}
	// The sender is the one who cares that their message was read.
	b.push(ctx, []int64{p.SenderID}, controlFrame{
		Type:      "message_read",
		MessageID: p.MessageID,
		UserID:    p.ReaderID,
	})
}

func (b *EventBroadcaster) onDestructed(ctx context.Context, e eventport.Event) {
	p, ok := e.Payload.(delivery.MessageDestructedEvent)
	if !ok {
		return
	}
	b.push(ctx, p.RecipientIDs, controlFrame{
		Type:      "message_destructed",
		MessageID: p.MessageID,
	})
}

func (b *EventBroadcaster) onPresenceChanged(ctx context.Context, e eventport.Event) {
	p, ok := e.Payload.(delivery.PresenceChangedEvent)
	if !ok {
		return
	}
	b.push(ctx, b.contactsOf(ctx, p.UserID), controlFrame{
		Type:   "presence_changed",
		UserID: p.UserID,
		Status: p.Status.String(),
	})
}

// contactsOf gathers the distinct members of every room the user
// belongs to, excluding the user.
func (b *EventBroadcaster) contactsOf(ctx context.Context, userID int64) []int64 {
	roomIDs, err := b.Rooms.RoomsOf(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("room lookup for presence broadcast failed")
		return nil
	}
	seen := map[int64]struct{}{userID: {}}
	var contacts []int64
	for _, roomID := range roomIDs {
		room, err := b.Rooms.Resolve(ctx, roomID)
		if err != nil {
			continue
		}
		for _, uid := range room.MemberIDs {
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			contacts = append(contacts, uid)
		}
	}
	return contacts
}

func (b *EventBroadcaster) push(ctx context.Context, recipients []int64, frame controlFrame) {
	if len(recipients) == 0 {
		return
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	online, err := b.Presence.DevicesOf(ctx, recipients)
	if err != nil {
		logrus.WithError(err).Warn("presence lookup for event broadcast failed")
		return
	}
	for _, devices := range online {
		for _, deviceID := range devices {
			_ = b.Pusher.PushDevice(deviceID, payload)
		}
	}
}
