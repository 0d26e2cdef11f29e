package task

import (
	"context"
	"time"

	qport "go-courier/internal/infrastructure/queue/port"
	"go-courier/internal/pkg/delivery/application/usecase"
)

// Periodic maintenance task names. Both are scheduled by the queue
// layer and safe to overlap with themselves.
const (
	RetrySweepTaskType    = "delivery:retry_sweep"
	DestructSweepTaskType = "delivery:destruct_sweep"
)

// RegisterRetrySweepTask binds the unacked-delivery sweeper.
func RegisterRetrySweepTask(srv qport.Server, uc *usecase.SweepRetryUseCase) {
	srv.Register(RetrySweepTaskType, func(ctx context.Context, _ qport.Task) error {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		_, err := uc.Execute(ctx, time.Now().UTC())
		return err
	})
}

// RegisterDestructSweepTask binds the timed self-destruct sweeper.
func RegisterDestructSweepTask(srv qport.Server, uc *usecase.SweepDestructUseCase) {
	srv.Register(DestructSweepTaskType, func(ctx context.Context, _ qport.Task) error {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		_, err := uc.Execute(ctx, time.Now().UTC())
		return err
	})
}
