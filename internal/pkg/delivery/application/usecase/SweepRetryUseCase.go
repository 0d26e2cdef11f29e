package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// SweepRetryUseCase walks the retry ledger and re-pushes unacked
// messages to recipients that are reachable again. Entries whose
// message meanwhile reached a terminal state, or vanished, are
// acknowledged away instead of retried.
type SweepRetryUseCase struct {
	Ledger   repository.RetryLedger
	Store    repository.MessageStore
	Presence repository.PresenceStore
	Pusher   repository.ConnectionPusher
}

func NewSweepRetryUseCase(ledger repository.RetryLedger, store repository.MessageStore, presence repository.PresenceStore, pusher repository.ConnectionPusher) *SweepRetryUseCase {
	return &SweepRetryUseCase{Ledger: ledger, Store: store, Presence: presence, Pusher: pusher}
}

// Execute runs one sweep pass and returns how many entries were
// re-pushed.
func (uc *SweepRetryUseCase) Execute(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.Ledger.SweepDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	pushed := 0
	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}
		if uc.retryOne(ctx, entry) {
			pushed++
		}
	}
	if pushed > 0 || len(due) > 0 {
		logrus.WithFields(logrus.Fields{"due": len(due), "pushed": pushed}).Info("retry sweep completed")
	}
	return pushed, nil
}

func (uc *SweepRetryUseCase) retryOne(ctx context.Context, entry delivery.RetryEntry) bool {
	log := logrus.WithFields(logrus.Fields{
		"message_id":   entry.MessageID,
		"recipient_id": entry.RecipientID,
		"attempts":     entry.Attempts,
	})

	msg, err := uc.Store.GetByID(ctx, entry.MessageID)
	if errors.Is(err, delivery.ErrMessageNotFound) {
		uc.ack(ctx, entry, "message vanished")
		return false
	}
	if err != nil {
		log.WithError(err).Warn("retry load failed, keeping entry")
		return false
	}
	if msg.Status.Terminal() {
		// A recalled or destroyed message must not be redelivered.
		uc.ack(ctx, entry, "message terminal")
		return false
	}

	devices, err := uc.Presence.ReachableDevices(ctx, entry.RecipientID)
	if err != nil {
		log.WithError(err).Warn("presence check failed, keeping entry")
		return false
	}
	if len(devices) == 0 {
		// Went offline again; the entry stays for the next pass.
		return false
	}

	payload, err := json.Marshal(buildFrame(msg))
	if err != nil {
		log.WithError(err).Error("encode retry frame")
		return false
	}
	delivered := false
	for _, deviceID := range devices {
		if uc.Pusher.PushDevice(deviceID, payload) {
			delivered = true
		}
	}
	if delivered {
		log.Debug("retry push delivered")
	}
	return delivered
}

func (uc *SweepRetryUseCase) ack(ctx context.Context, entry delivery.RetryEntry, reason string) {
	if err := uc.Ledger.Acknowledge(ctx, entry.MessageID, entry.RecipientID); err != nil {
		logrus.WithFields(logrus.Fields{
			"message_id":   entry.MessageID,
			"recipient_id": entry.RecipientID,
		}).WithError(err).Warn("ledger acknowledge failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"message_id":   entry.MessageID,
		"recipient_id": entry.RecipientID,
		"reason":       reason,
	}).Debug("retry entry retired")
}
