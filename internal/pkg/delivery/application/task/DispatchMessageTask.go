package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	qport "go-courier/internal/infrastructure/queue/port"
	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/application/usecase"
)

// RegisterDispatchMessageTask binds the fan-out handler to the queue
// server. The ingress contract is at-least-once; the use case is
// idempotent, so duplicate deliveries of the same event are harmless.
func RegisterDispatchMessageTask(srv qport.Server, uc *usecase.DispatchMessageUseCase) {
	srv.Register(usecase.DispatchTaskType, func(ctx context.Context, t qport.Task) error {
		var p usecase.DispatchTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// Malformed payloads never become valid; drop without retry.
			logrus.WithError(err).Error("dispatch task: malformed payload")
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		err := uc.Execute(ctx, usecase.DispatchInput{
			MessageID:   p.MessageID,
			SenderID:    p.SenderID,
			RoomID:      p.RoomID,
			RecipientID: p.RecipientID,
		})
		if errors.Is(err, delivery.ErrMessageNotFound) || errors.Is(err, delivery.ErrRoomNotFound) {
			// Permanent: already logged inside the use case, retrying
			// cannot make the referenced row reappear.
			return nil
		}
		return err
	})
}
