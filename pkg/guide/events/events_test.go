package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	var a, b []Kind
	bus.Subscribe(ListenerFunc(func(e Event) { a = append(a, e.Kind) }))
	bus.Subscribe(ListenerFunc(func(e Event) { b = append(b, e.Kind) }))

	bus.Publish(Event{Kind: KindGuideStarted})
	bus.Publish(Event{Kind: KindStepActivated})

	assert.Equal(t, []Kind{KindGuideStarted, KindStepActivated}, a)
	assert.Equal(t, a, b)
	assert.Equal(t, 2, bus.Len())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0
	unsubscribe := bus.Subscribe(ListenerFunc(func(Event) { count++ }))

	bus.Publish(Event{Kind: KindStepCompleted})
	unsubscribe()
	unsubscribe() // idempotent
	bus.Publish(Event{Kind: KindStepCompleted})

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_SubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	late := 0
	bus.Subscribe(ListenerFunc(func(Event) {
		bus.Subscribe(ListenerFunc(func(Event) { late++ }))
	}))

	bus.Publish(Event{Kind: KindGuideStarted})
	assert.Equal(t, 0, late, "listener added mid-publish must not see the current event")

	bus.Publish(Event{Kind: KindGuideStarted})
	assert.Equal(t, 1, late)
}

func TestWatermillSink_Publishes(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()

	msgs, err := pubSub.Subscribe(context.Background(), DefaultTopic)
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, "")
	sink.HandleEvent(Event{Kind: KindRollback, GuideID: "g1", StepID: "setup", Index: 1, RequestedIndex: 2, Forced: true})

	select {
	case msg := <-msgs:
		var e Event
		require.NoError(t, json.Unmarshal(msg.Payload, &e))
		msg.Ack()
		assert.Equal(t, KindRollback, e.Kind)
		assert.Equal(t, "setup", e.StepID)
		assert.Equal(t, 2, e.RequestedIndex)
		assert.True(t, e.Forced)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestRouter_DeliversToHandler(t *testing.T) {
	r, err := NewRouter()
	require.NoError(t, err)

	got := make(chan Event, 1)
	r.AddHandler("collect", func(_ context.Context, e Event) error {
		got <- e
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	<-r.Running()

	r.Sink().HandleEvent(Event{Kind: KindGuideFinished, GuideID: "g1", Index: -1})

	select {
	case e := <-got:
		assert.Equal(t, KindGuideFinished, e.Kind)
		assert.Equal(t, "g1", e.GuideID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received the event")
	}
	require.NoError(t, r.Close())
}
