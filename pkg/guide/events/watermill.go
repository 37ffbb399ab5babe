package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultTopic is the watermill topic guide notifications are published on.
const DefaultTopic = "labguide.events"

// WatermillSink is a Listener that forwards notifications to a watermill
// Publisher as JSON messages, so out-of-process or asynchronous subscribers
// can consume them.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillSink creates a sink publishing to topic.
func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillSink{publisher: publisher, topic: topic}
}

// HandleEvent implements Listener. Publish failures are logged, never returned:
// notifications are fire-and-forget.
func (w *WatermillSink) HandleEvent(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal guide event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Warn().Err(err).Str("topic", w.topic).Msg("Failed to publish guide event")
		return
	}
	log.Trace().Str("topic", w.topic).Str("kind", string(e.Kind)).Msg("Published guide event")
}

var _ Listener = (*WatermillSink)(nil)

// Router owns an in-process gochannel pub/sub and a watermill router whose
// handlers receive decoded guide events.
type Router struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	topic      string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the watermill logger.
func WithLogger(logger watermill.LoggerAdapter) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) RouterOption {
	return func(r *Router) {
		r.topic = topic
	}
}

// NewRouter creates a router backed by a buffered gochannel pub/sub. Publishing
// does not wait for handlers, so a slow handler never stalls the sequencer.
func NewRouter(options ...RouterOption) (*Router, error) {
	ret := &Router{
		logger: watermill.NopLogger{},
		topic:  DefaultTopic,
	}
	for _, o := range options {
		o(ret)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, ret.logger)
	ret.Publisher = pubSub
	ret.Subscriber = pubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, errors.Wrap(err, "create watermill router")
	}
	ret.router = router
	return ret, nil
}

// Sink returns a Listener publishing into this router's topic.
func (r *Router) Sink() *WatermillSink {
	return NewWatermillSink(r.Publisher, r.topic)
}

// AddHandler registers a handler receiving every decoded event on the topic.
// Undecodable messages are logged and dropped.
func (r *Router) AddHandler(name string, f func(ctx context.Context, e Event) error) {
	r.router.AddNoPublisherHandler(name, r.topic, r.Subscriber, func(msg *message.Message) error {
		var e Event
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			log.Error().Err(err).Str("message_id", msg.UUID).Msg("Failed to decode guide event")
			return nil
		}
		return f(msg.Context(), e)
	})
}

// Run blocks running the router until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once the router's handlers are subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close stops the router and the pub/sub.
func (r *Router) Close() error {
	log.Debug().Msg("Closing guide event router")
	if err := r.router.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}
	if err := r.Publisher.Close(); err != nil {
		return errors.Wrap(err, "close pubsub")
	}
	return nil
}
