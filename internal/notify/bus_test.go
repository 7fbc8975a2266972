package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesSessionSubscribers(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe("daily")
	defer cancel()
	other, cancelOther := bus.Subscribe("manual")
	defer cancelOther()

	bus.Publish("daily", "limit_up_pool", "ok")

	select {
	case ev := <-ch:
		assert.Equal(t, "daily", ev.Session)
		assert.Equal(t, "limit_up_pool", ev.Step)
		assert.Equal(t, "ok", ev.Detail)
		assert.False(t, ev.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event on daily subscription")
	}

	select {
	case ev := <-other:
		t.Fatalf("manual session should not receive %v", ev)
	default:
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe("daily")
	require.Equal(t, 1, bus.Subscribers("daily"))

	cancel()
	assert.Equal(t, 0, bus.Subscribers("daily"))

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel is a no-op, not a panic.
	assert.NotPanics(t, func() { bus.Publish("daily", "step", "detail") })
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()

	_, cancel := bus.Subscribe("daily")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish("daily", "step", "flood")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestBus_MultipleSubscribersSameSession(t *testing.T) {
	bus := NewBus()

	a, cancelA := bus.Subscribe("daily")
	defer cancelA()
	b, cancelB := bus.Subscribe("daily")
	defer cancelB()

	bus.Publish("daily", "step", "fanout")

	assert.Equal(t, "fanout", (<-a).Detail)
	assert.Equal(t, "fanout", (<-b).Detail)
}
