package adapter

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"go-courier/internal/infrastructure/eventbus/port"
)

// InProcessBus delivers events to subscribers on their own goroutines.
// Subscriber failure is isolated: a panic is recovered and logged, and
// the emitter never observes it.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]port.Handler
	wg       sync.WaitGroup
	closed   bool
}

// NewInProcessBus constructs an empty bus.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{handlers: make(map[string][]port.Handler)}
}

var _ port.Bus = (*InProcessBus)(nil)

func (b *InProcessBus) Subscribe(name string, h port.Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

func (b *InProcessBus) Publish(ctx context.Context, e port.Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	hs := b.handlers[e.Name]
	b.wg.Add(len(hs))
	b.mu.RUnlock()

	for _, h := range hs {
		go func(h port.Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"event": e.Name,
						"panic": r,
					}).Error("event subscriber panicked")
				}
			}()
			h(ctx, e)
		}(h)
	}
}

// Close waits for in-flight handlers and rejects further publishes.
func (b *InProcessBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
