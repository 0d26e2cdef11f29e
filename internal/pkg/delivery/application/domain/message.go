package delivery

import (
	"errors"
	"time"
)

// MessageStatus tracks the lifecycle of an encrypted message.
// SENDING -> SENT -> READ are the normal transitions; RECALLED and
// DESTROYED are terminal and no mutation may move a message out of them.
type MessageStatus int16

const (
	MessageStatusSending   MessageStatus = 0
	MessageStatusSent      MessageStatus = 1
	MessageStatusRead      MessageStatus = 2
	MessageStatusRecalled  MessageStatus = 3
	MessageStatusDestroyed MessageStatus = 4
	MessageStatusDeleted   MessageStatus = 5
)

// Terminal reports whether no further status mutation is allowed.
func (s MessageStatus) Terminal() bool {
	return s == MessageStatusRecalled || s == MessageStatusDestroyed || s == MessageStatusDeleted
}

func (s MessageStatus) String() string {
	switch s {
	case MessageStatusSending:
		return "SENDING"
	case MessageStatusSent:
		return "SENT"
	case MessageStatusRead:
		return "READ"
	case MessageStatusRecalled:
		return "RECALLED"
	case MessageStatusDestroyed:
		return "DESTROYED"
	case MessageStatusDeleted:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Algorithm identifies the cipher the client used. The core never
// interprets it beyond passing it through to recipients.
type Algorithm string

const (
	AlgorithmAESGCM           Algorithm = "AES-GCM"
	AlgorithmChaCha20Poly1305 Algorithm = "CHACHA20-POLY1305"
)

const (
	// minLifetimeAfterRead is how long a self-destructing message
	// survives once read.
	minLifetimeAfterRead = 5 * time.Minute
	// maxLifetime caps every self-destructing message regardless of
	// timer or read state.
	maxLifetime = 3 * 24 * time.Hour
)

// Message is the durable record of one encrypted payload. The cipher
// fields are immutable after creation; status, read and destruct
// markers change only through MessageStore.CompareAndSwap carrying the
// Version read immediately beforehand.
type Message struct {
	ID             int64         `db:"id"`
	ConversationID string        `db:"conversation_id"`
	SenderID       int64         `db:"sender_id"`
	RecipientID    *int64        `db:"recipient_id"` // private chat target; nil for room messages
	RoomID         *int64        `db:"room_id"`      // group target; nil for private chats
	Ciphertext     []byte        `db:"ciphertext"`
	IV             []byte        `db:"iv"`
	AuthTag        []byte        `db:"auth_tag"`
	KeyID          string        `db:"key_id"`
	Algorithm      Algorithm     `db:"algorithm"`
	ContentType    string        `db:"content_type"`
	Status         MessageStatus `db:"status"`
	Version        int64         `db:"version"`
	CreatedAt      time.Time     `db:"created_at"`
	ReadAt         *time.Time    `db:"read_at"`
	DestructTimer  time.Duration `db:"destruct_timer"` // zero disables self-destruction
	DestructAt     *time.Time    `db:"destruct_at"`
	RecalledBy     *int64        `db:"recalled_by"`
	RecalledAt     *time.Time    `db:"recalled_at"`
}

// NewMessage validates and normalizes a message about to be persisted.
// Exactly one of RecipientID and RoomID must be set.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == 0 {
		return nil, errors.New("conversation_id and sender_id are required")
	}
	if (m.RecipientID == nil) == (m.RoomID == nil) {
		return nil, ErrAmbiguousTarget
	}
	if len(m.Ciphertext) == 0 || len(m.IV) == 0 {
		return nil, errors.New("ciphertext and iv are required")
	}
	if m.KeyID == "" {
		return nil, errors.New("key_id is required")
	}
	if m.Algorithm == "" {
		m.Algorithm = AlgorithmAESGCM
	}
	if m.ContentType == "" {
		m.ContentType = "text"
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Status = MessageStatusSending
	m.Version = 0
	if m.DestructTimer > 0 {
		at := m.CalculateDestructAt()
		m.DestructAt = &at
	}
	return &m, nil
}

// IsGroup reports whether the message targets a room rather than a
// single recipient.
func (m *Message) IsGroup() bool { return m.RoomID != nil }

// SelfDestructEnabled reports whether the client armed a destruct timer.
func (m *Message) SelfDestructEnabled() bool { return m.DestructTimer > 0 }

// CalculateDestructAt computes when the message must be destroyed:
// readAt+5min once read, createdAt+timer while unread, never later than
// createdAt+3d.
func (m *Message) CalculateDestructAt() time.Time {
	ceiling := m.CreatedAt.Add(maxLifetime)
	if m.ReadAt != nil {
		if at := m.ReadAt.Add(minLifetimeAfterRead); at.Before(ceiling) {
			return at
		}
		return ceiling
	}
	timer := m.DestructTimer
	if timer > maxLifetime {
		timer = maxLifetime
	}
	return m.CreatedAt.Add(timer)
}

// DueForDestruction reports whether the destruct deadline has passed.
func (m *Message) DueForDestruction(now time.Time) bool {
	return m.DestructAt != nil && now.After(*m.DestructAt)
}

// MarkSent flips a freshly dispatched message out of SENDING. No-op on
// any later status.
func (m *Message) MarkSent() {
	if m.Status == MessageStatusSending {
		m.Status = MessageStatusSent
	}
}

// MarkRead records the read timestamp and, when self-destruction is
// armed, pulls the destruct deadline forward. Returns false when the
// message was already read; terminal states are rejected.
func (m *Message) MarkRead(at time.Time) (bool, error) {
	if m.Status.Terminal() {
		return false, ErrTerminalState
	}
	if m.ReadAt != nil {
		return false, nil
	}
	at = at.UTC()
	m.ReadAt = &at
	if m.Status == MessageStatusSent || m.Status == MessageStatusSending {
		m.Status = MessageStatusRead
	}
	if m.SelfDestructEnabled() {
		d := m.CalculateDestructAt()
		m.DestructAt = &d
	}
	return true, nil
}

// Recall marks the message recalled by the given user. Terminal states
// are rejected; the caller treats an already-recalled message as an
// idempotent success before attempting the swap.
func (m *Message) Recall(by int64, at time.Time) error {
	if m.Status.Terminal() {
		return ErrTerminalState
	}
	at = at.UTC()
	m.Status = MessageStatusRecalled
	m.RecalledBy = &by
	m.RecalledAt = &at
	return nil
}

// Destruct wipes the cipher payload and moves the message to its final
// DESTROYED state. Terminal states are rejected so callers can no-op;
// a recalled message stays RECALLED.
func (m *Message) Destruct(at time.Time) error {
	if m.Status.Terminal() {
		return ErrTerminalState
	}
	at = at.UTC()
	m.Status = MessageStatusDestroyed
	m.Ciphertext = nil
	m.IV = nil
	m.AuthTag = nil
	m.DestructAt = &at
	return nil
}
