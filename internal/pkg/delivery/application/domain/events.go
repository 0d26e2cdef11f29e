package delivery

import "time"

// Event names for the outbound bus. Subscribers (search indexing,
// analytics, notification fan-out) are best effort; none can fail the
// emitting operation.
const (
	EventMessageDispatched = "message.dispatched"
	EventMessageRecalled   = "message.recalled"
	EventMessageRead       = "message.read"
	EventMessageDestructed = "message.destructed"
	EventPresenceChanged   = "presence.changed"
)

// MessageDispatchedEvent is emitted after a fan-out completes.
type MessageDispatchedEvent struct {
	MessageID    int64
	SenderID     int64
	RecipientIDs []int64
	OnlineIDs    []int64
	OccurredAt   time.Time
}

// MessageRecalledEvent is emitted once a recall CAS wins.
type MessageRecalledEvent struct {
	MessageID    int64
	RecalledBy   int64
	RecipientIDs []int64
	OccurredAt   time.Time
}

// MessageReadEvent notifies the sender that the recipient read the
// message.
type MessageReadEvent struct {
	MessageID    int64
	ReaderID     int64
	SenderID     int64
	RecipientIDs []int64
	ReadAt       time.Time
}

// MessageDestructedEvent is emitted when a self-destruct fires or a
// manual destruct succeeds.
type MessageDestructedEvent struct {
	MessageID    int64
	RecipientIDs []int64
	OccurredAt   time.Time
}

// PresenceChangedEvent announces a user's reachability transition to
// the rooms they belong to. Delivery failures are logged, never
// propagated.
type PresenceChangedEvent struct {
	UserID     int64
	DeviceID   string
	Status     PresenceStatus
	OccurredAt time.Time
}
