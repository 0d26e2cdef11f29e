package adapter

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-courier/internal/infrastructure/eventbus/port"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewInProcessBus()
	var calls int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("thing.happened", func(ctx context.Context, e port.Event) {
			atomic.AddInt32(&calls, 1)
		})
	}
	bus.Subscribe("other.event", func(ctx context.Context, e port.Event) {
		atomic.AddInt32(&calls, 100)
	})

	bus.Publish(context.Background(), port.Event{Name: "thing.happened"})
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSubscriberPanicIsIsolated(t *testing.T) {
	bus := NewInProcessBus()
	var delivered int32
	bus.Subscribe("thing.happened", func(ctx context.Context, e port.Event) {
		panic("subscriber bug")
	})
	bus.Subscribe("thing.happened", func(ctx context.Context, e port.Event) {
		atomic.AddInt32(&delivered, 1)
	})

	bus.Publish(context.Background(), port.Event{Name: "thing.happened"})
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered))
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	bus := NewInProcessBus()
	var calls int32
	bus.Subscribe("thing.happened", func(ctx context.Context, e port.Event) {
		atomic.AddInt32(&calls, 1)
	})
	require.NoError(t, bus.Close())

	bus.Publish(context.Background(), port.Event{Name: "thing.happened"})
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
