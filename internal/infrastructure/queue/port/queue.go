package port

import (
	"context"
	"time"
)

// Task is one unit of background work: a dispatch for a freshly stored
// message or a periodic sweep. Payload encoding belongs to the caller;
// the port stays serialization-free.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. The queue delivers at-least-once, so
// handlers must be idempotent; a non-nil return requeues the task under
// the adapter's retry policy, nil acknowledges it (including payloads
// judged permanently unprocessable).
type Handler func(ctx context.Context, task Task) error

// EnqueueOption tunes a single enqueue. Zero values mean "unspecified";
// adapters ignore fields their backend cannot express.
type EnqueueOption struct {
	Queue     string        // logical queue, e.g. "delivery"
	ProcessIn time.Duration // delay before processing
	ProcessAt time.Time     // absolute schedule, wins over ProcessIn
	MaxRetry  int
	UniqueTTL time.Duration // dedupe window; collapses sweep ticks from multiple nodes
	Retention time.Duration // keep result metadata this long
	Deadline  time.Time
}

// Client enqueues tasks for the worker pool.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server consumes tasks. Run blocks until the context is canceled or
// Stop is called.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
