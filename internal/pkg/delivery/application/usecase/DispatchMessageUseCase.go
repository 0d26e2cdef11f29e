package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	eventport "go-courier/internal/infrastructure/eventbus/port"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// DispatchInput mirrors the ingress queue event: the persisted message
// plus enough routing context to resolve recipients.
type DispatchInput struct {
	MessageID   int64
	SenderID    int64
	RoomID      *int64
	RecipientID *int64
}

// encryptedFrame is the connection-layer payload for one message.
// Cipher fields pass through untouched; the core never decrypts.
// []byte fields serialize as base64 through encoding/json.
type encryptedFrame struct {
	Type           string    `json:"type"`
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	RoomID         *int64    `json:"room_id,omitempty"`
	KeyID          string    `json:"key_id"`
	Algorithm      string    `json:"algorithm"`
	Ciphertext     []byte    `json:"ciphertext"`
	IV             []byte    `json:"iv"`
	AuthTag        []byte    `json:"auth_tag,omitempty"`
	ContentType    string    `json:"content_type"`
	CreatedAt      time.Time `json:"created_at"`
	DestructMs     int64     `json:"destruct_timer_ms,omitempty"`
}

// DispatchMessageUseCase is the fan-out engine: it loads the encrypted
// message, expands the recipient set, splits it by live presence,
// pushes to every reachable device and records retry bookkeeping, and
// hands the unreachable rest to the push gateway. Safe to run more than
// once per message: ledger inserts are upserts and pushes carry no
// state.
type DispatchMessageUseCase struct {
	Store    repository.MessageStore
	Rooms    repository.RoomResolver
	Presence repository.PresenceStore
	Ledger   repository.RetryLedger
	Pusher   repository.ConnectionPusher
	Gateway  repository.PushGateway
	Bus      eventport.Bus
}

func NewDispatchMessageUseCase(
	store repository.MessageStore,
	rooms repository.RoomResolver,
	presence repository.PresenceStore,
	ledger repository.RetryLedger,
	pusher repository.ConnectionPusher,
	gateway repository.PushGateway,
	bus eventport.Bus,
) *DispatchMessageUseCase {
	return &DispatchMessageUseCase{
		Store:    store,
		Rooms:    rooms,
		Presence: presence,
		Ledger:   ledger,
		Pusher:   pusher,
		Gateway:  gateway,
		Bus:      bus,
	}
}

// Execute runs one dispatch attempt. A vanished message is a permanent
// failure for this event: it is logged at error severity and returned
// so the queue layer can drop it without retrying.
func (uc *DispatchMessageUseCase) Execute(ctx context.Context, in DispatchInput) error {
	log := logrus.WithFields(logrus.Fields{
		"message_id": in.MessageID,
		"sender_id":  in.SenderID,
	})

	msg, err := uc.Store.GetByID(ctx, in.MessageID)
	if err != nil {
		if errors.Is(err, delivery.ErrMessageNotFound) {
			// A message that vanished between enqueue and dispatch is a
			// data-loss bug upstream, not a transient condition.
			log.Error("dispatch for vanished message")
			return delivery.ErrMessageNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	recipients, err := uc.resolveRecipients(ctx, msg, in)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		// Solo room or dissolved group: dispatch completes as a no-op.
		log.Debug("no recipients to dispatch to")
		return nil
	}

	online, err := uc.Presence.DevicesOf(ctx, recipients)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payload, err := json.Marshal(buildFrame(msg))
	if err != nil {
		return fmt.Errorf("dispatch: encode frame: %w", err)
	}

	onlineIDs := make([]int64, 0, len(online))
	var wg sync.WaitGroup
	for _, uid := range recipients {
		devices, reachable := online[uid]
		if reachable {
			onlineIDs = append(onlineIDs, uid)
		}
		wg.Add(1)
		go func(uid int64, devices []string, reachable bool) {
			defer wg.Done()
			if reachable {
				uc.deliverOnline(ctx, msg, uid, devices, payload)
			} else {
				uc.deliverOffline(ctx, msg, uid)
			}
		}(uid, devices, reachable)
	}
	wg.Wait()

	uc.markSent(ctx, msg)

	if uc.Bus != nil {
		uc.Bus.Publish(ctx, eventport.Event{
			Name: delivery.EventMessageDispatched,
			Payload: delivery.MessageDispatchedEvent{
				MessageID:    msg.ID,
				SenderID:     msg.SenderID,
				RecipientIDs: recipients,
				OnlineIDs:    onlineIDs,
				OccurredAt:   time.Now().UTC(),
			},
		})
	}

	log.WithFields(logrus.Fields{
		"recipients": len(recipients),
		"online":     len(onlineIDs),
	}).Info("message dispatched")
	return nil
}

func (uc *DispatchMessageUseCase) resolveRecipients(ctx context.Context, msg *delivery.Message, in DispatchInput) ([]int64, error) {
	if in.RecipientID != nil {
		return []int64{*in.RecipientID}, nil
	}
	roomID := in.RoomID
	if roomID == nil {
		roomID = msg.RoomID
	}
	if roomID == nil {
		if msg.RecipientID != nil {
			return []int64{*msg.RecipientID}, nil
		}
		return nil, delivery.ErrAmbiguousTarget
	}
	room, err := uc.Rooms.Resolve(ctx, *roomID)
	if err != nil {
		return nil, err
	}
	return room.Recipients(in.SenderID), nil
}

// deliverOnline pushes to every reachable device and records the pair
// in the retry ledger. Push failure on an individual device is left to
// the sweeper; dispatch never blocks on acknowledgment.
func (uc *DispatchMessageUseCase) deliverOnline(ctx context.Context, msg *delivery.Message, uid int64, devices []string, payload []byte) {
	for _, deviceID := range devices {
		if !uc.Pusher.PushDevice(deviceID, payload) {
			logrus.WithFields(logrus.Fields{
				"message_id": msg.ID,
				"user_id":    uid,
				"device_id":  deviceID,
			}).Debug("realtime push failed, sweeper will retry")
		}
	}
	if err := uc.Ledger.Record(ctx, msg.ID, uid); err != nil {
		logrus.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"user_id":    uid,
		}).WithError(err).Warn("retry ledger record failed")
	}
}

// deliverOffline sends the minimal push-fallback notification: no
// plaintext, no ciphertext, only a conversation reference.
func (uc *DispatchMessageUseCase) deliverOffline(ctx context.Context, msg *delivery.Message, uid int64) {
	extra := map[string]string{
		"conversation_id": msg.ConversationID,
		"message_id":      strconv.FormatInt(msg.ID, 10),
	}
	ok, err := uc.Gateway.Notify(ctx, uid, "New message", "You have a new message", extra)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"user_id":    uid,
		}).WithError(err).Warn("push gateway transport fault")
		return
	}
	if !ok {
		logrus.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"user_id":    uid,
		}).Debug("push gateway declined notification")
	}
}

// markSent flips SENDING to SENT with a single optimistic attempt. A
// conflict means another actor already advanced the status; redelivery
// does not need to win this race.
func (uc *DispatchMessageUseCase) markSent(ctx context.Context, msg *delivery.Message) {
	if msg.Status != delivery.MessageStatusSending {
		return
	}
	_, _, err := uc.Store.CompareAndSwap(ctx, msg.ID, msg.Version, func(m *delivery.Message) error {
		m.MarkSent()
		return nil
	})
	if err != nil {
		logrus.WithField("message_id", msg.ID).WithError(err).Debug("mark sent skipped")
	}
}

func buildFrame(m *delivery.Message) encryptedFrame {
	return encryptedFrame{
		Type:           "encrypted_message",
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RoomID:         m.RoomID,
		KeyID:          m.KeyID,
		Algorithm:      string(m.Algorithm),
		Ciphertext:     m.Ciphertext,
		IV:             m.IV,
		AuthTag:        m.AuthTag,
		ContentType:    m.ContentType,
		CreatedAt:      m.CreatedAt,
		DestructMs:     m.DestructTimer.Milliseconds(),
	}
}
