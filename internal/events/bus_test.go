// internal/events/bus_test.go
package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	got := make(chan Event, 1)
	bus.SubscribeFunc(PositionOpened, func(ctx context.Context, e Event) error {
		got <- e
		return nil
	})

	require.NoError(t, bus.Publish(PositionOpenedEvent{
		BaseEvent: NewBase(PositionOpened),
		Symbol:    "FOO",
	}))

	select {
	case e := <-got:
		opened, ok := e.(PositionOpenedEvent)
		require.True(t, ok)
		assert.Equal(t, "FOO", opened.Symbol)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscriberOnlySeesItsType(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	got := make(chan Event, 4)
	bus.SubscribeFunc(TradeFailed, func(ctx context.Context, e Event) error {
		got <- e
		return nil
	})

	require.NoError(t, bus.Publish(PositionClosedEvent{BaseEvent: NewBase(PositionClosed), Symbol: "FOO"}))
	require.NoError(t, bus.Publish(TradeFailedEvent{BaseEvent: NewBase(TradeFailed), Symbol: "BAR"}))

	select {
	case e := <-got:
		assert.Equal(t, TradeFailed, e.Type())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Empty(t, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	got := make(chan Event, 4)
	sub := bus.SubscribeFunc(PositionClosed, func(ctx context.Context, e Event) error {
		got <- e
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(PositionClosedEvent{BaseEvent: NewBase(PositionClosed)}))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, got)
}

func TestPublishAfterShutdownFails(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(PositionClosedEvent{BaseEvent: NewBase(PositionClosed)})
	assert.Error(t, err)
}
