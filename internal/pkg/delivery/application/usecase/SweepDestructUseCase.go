package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

const defaultDestructBatch = 200

// SweepDestructUseCase finds messages whose self-destruct deadline has
// passed and wipes them through the same optimistic protocol user
// mutations use, so a concurrent recall or read cannot be trampled.
type SweepDestructUseCase struct {
	Store    repository.MessageStore
	Destruct *DestructMessageUseCase
	Batch    int
}

func NewSweepDestructUseCase(store repository.MessageStore, destruct *DestructMessageUseCase) *SweepDestructUseCase {
	return &SweepDestructUseCase{Store: store, Destruct: destruct, Batch: defaultDestructBatch}
}

// Execute wipes one batch of due messages and returns how many were
// destructed.
func (uc *SweepDestructUseCase) Execute(ctx context.Context, now time.Time) (int, error) {
	batch := uc.Batch
	if batch <= 0 {
		batch = defaultDestructBatch
	}
	due, err := uc.Store.ListDestructDue(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	wiped := 0
	for _, m := range due {
		if err := ctx.Err(); err != nil {
			return wiped, err
		}
		_, err := uc.Destruct.Execute(ctx, DestructMessageInput{MessageID: m.ID})
		switch {
		case err == nil:
			wiped++
		case errors.Is(err, delivery.ErrMessageNotFound):
			// Racing deletion; nothing left to wipe.
		case errors.Is(err, delivery.ErrConcurrentModificationExceeded):
			// Contended record rolls over to the next sweep pass.
			logrus.WithField("message_id", m.ID).Debug("destruct deferred under contention")
		default:
			logrus.WithField("message_id", m.ID).WithError(err).Warn("destruct sweep failed for message")
		}
	}
	if wiped > 0 {
		logrus.WithFields(logrus.Fields{"due": len(due), "wiped": wiped}).Info("destruct sweep completed")
	}
	return wiped, nil
}
