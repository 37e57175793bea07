package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishRoutesByType(t *testing.T) {
	bus := NewEventBus(nil)

	var typed, all []Event
	bus.Subscribe(TypeBookingCreated, func(e Event) error {
		typed = append(typed, e)
		return nil
	})
	bus.SubscribeAll(func(e Event) error {
		all = append(all, e)
		return nil
	})

	bus.Publish(TypeBookingCreated, BookingCreated{BookingID: "APT1001", Branch: "Sialkot"})
	bus.Publish("something.else", map[string]string{"k": "v"})

	require.Len(t, typed, 1)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(1), typed[0].ID)
	assert.False(t, typed[0].CreatedAt.IsZero())

	var payload BookingCreated
	require.NoError(t, typed[0].Decode(&payload))
	assert.Equal(t, "APT1001", payload.BookingID)
	assert.Equal(t, "Sialkot", payload.Branch)
}

func TestEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus(nil)

	calls := 0
	bus.Subscribe("x", func(Event) error { calls++; return errors.New("boom") })
	bus.Subscribe("x", func(Event) error { calls++; return nil })

	bus.Publish("x", struct{}{})
	assert.Equal(t, 2, calls)
}

func TestEventBus_UnencodablePayloadIsDropped(t *testing.T) {
	bus := NewEventBus(nil)

	called := false
	bus.SubscribeAll(func(Event) error { called = true; return nil })

	bus.Publish("x", make(chan int))
	assert.False(t, called)
}

func TestRedisPublisher_Run(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := client.Subscribe(ctx, "clinic:booking.created")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "clinic", 10, nil)
	assert.Equal(t, "clinic:booking.created", pub.Channel(TypeBookingCreated))
	go pub.Run(ctx)

	bus := NewEventBus(nil)
	bus.SubscribeAll(pub.Handle)
	bus.Publish(TypeBookingCreated, BookingCreated{BookingID: "APT1002"})

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"booking_id":"APT1002"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisher_HandleDoesNotWaitForRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	// Nothing drains the queue and Redis is down; Handle must still return at once.
	pub := NewRedisPublisher(client, "", 1, nil)
	bus := NewEventBus(nil)
	bus.SubscribeAll(pub.Handle)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			bus.Publish(TypeBookingCreated, BookingCreated{BookingID: "APT1001"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked on the redis forwarder")
	}
	assert.Len(t, pub.queue, 1)
}

func TestRedisPublisher_DefaultPrefixAndError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewRedisPublisher(client, "", 0, nil)
	assert.Equal(t, "receptionist:booking.created", pub.Channel(TypeBookingCreated))
	assert.Equal(t, 100, cap(pub.queue))

	mr.Close()
	err := pub.publish(context.Background(), Event{Type: TypeBookingCreated, Payload: []byte(`{}`)})
	assert.Error(t, err)
}
