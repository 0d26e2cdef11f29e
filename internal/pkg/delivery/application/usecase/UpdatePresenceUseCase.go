package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	eventport "go-courier/internal/infrastructure/eventbus/port"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// UpdatePresenceInput carries one device heartbeat or status change.
type UpdatePresenceInput struct {
	UserID   int64
	DeviceID string
	Node     string
	Status   delivery.PresenceStatus
}

// UpdatePresenceUseCase upserts a device's presence entry and, for
// broadcastable statuses, announces the change on the event bus.
// INVISIBLE stays reachable for delivery but is never announced.
type UpdatePresenceUseCase struct {
	Presence repository.PresenceStore
	Bus      eventport.Bus
}

func NewUpdatePresenceUseCase(presence repository.PresenceStore, bus eventport.Bus) *UpdatePresenceUseCase {
	return &UpdatePresenceUseCase{Presence: presence, Bus: bus}
}

func (uc *UpdatePresenceUseCase) Execute(ctx context.Context, in UpdatePresenceInput) error {
	if in.UserID == 0 || in.DeviceID == "" {
		return fmt.Errorf("presence: userId and deviceId are required")
	}

	now := time.Now().UTC()
	if in.Status == delivery.PresenceOffline {
		if err := uc.Presence.RemoveDevice(ctx, in.UserID, in.DeviceID); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	} else {
		err := uc.Presence.SetStatus(ctx, delivery.PresenceEntry{
			UserID:       in.UserID,
			DeviceID:     in.DeviceID,
			Node:         in.Node,
			Status:       in.Status,
			LastActiveAt: now,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	uc.broadcast(ctx, in, now)
	return nil
}

// Disconnect drops every entry for the user, as on forced logout.
func (uc *UpdatePresenceUseCase) Disconnect(ctx context.Context, userID int64) error {
	if err := uc.Presence.RemoveAllDevices(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	uc.broadcast(ctx, UpdatePresenceInput{UserID: userID, Status: delivery.PresenceOffline}, time.Now().UTC())
	return nil
}

func (uc *UpdatePresenceUseCase) broadcast(ctx context.Context, in UpdatePresenceInput, at time.Time) {
	if uc.Bus == nil {
		return
	}
	if !in.Status.Broadcastable() {
		logrus.WithField("user_id", in.UserID).Debug("presence change suppressed from broadcast")
		return
	}
	uc.Bus.Publish(ctx, eventport.Event{
		Name: delivery.EventPresenceChanged,
		Payload: delivery.PresenceChangedEvent{
			UserID:     in.UserID,
			DeviceID:   in.DeviceID,
			Status:     in.Status,
			OccurredAt: at,
		},
	})
}
