// Package queue serialises requests to a remote service: one exchange in
// flight at a time, strict arrival order, and every callback fired exactly
// once unless the item is cleared before it starts.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDelay is the pause between two exchanges.
const DefaultDelay = 100 * time.Millisecond

var (
	// ErrTransportUnavailable is delivered when no transport is located at
	// drain time.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrQueueClosed is delivered to callbacks of items enqueued after Close.
	ErrQueueClosed = errors.New("queue closed")
)

// Request is an outbound message.
type Request struct {
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRequest marshals payload into a Request for method.
func NewRequest(method string, payload any) (*Request, error) {
	req := &Request{Method: method}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s payload", method)
		}
		req.Payload = b
	}
	return req, nil
}

// Response is what a transport returns for a Request.
type Response struct {
	RequestID string          `json:"request_id"`
	Status    int             `json:"status,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Callback receives the outcome of one exchange.
type Callback func(resp *Response, err error)

// Transport performs one exchange.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Locator finds the active transport; false means none is available now.
type Locator func() (Transport, bool)

// Static returns a Locator that always yields t.
func Static(t Transport) Locator {
	return func() (Transport, bool) { return t, t != nil }
}

type item struct {
	req      *Request
	cb       Callback
	timeout  time.Duration
	enqueued time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithDelay sets the pause between exchanges.
func WithDelay(d time.Duration) Option {
	return func(q *Queue) { q.delay = d }
}

// WithLogger overrides the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// Queue is a FIFO with a single drain goroutine, started on demand.
type Queue struct {
	locate Locator
	delay  time.Duration
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	items    []*item
	draining bool
	idle     chan struct{} // closed when the current drain loop exits
	closed   bool
}

// New creates a queue that locates its transport through locate.
func New(locate Locator, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		locate: locate,
		delay:  DefaultDelay,
		log:    log.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue appends a copy of req, stamped with id, and starts the drain loop
// if it is not running. An empty id falls back to req.ID, then to a fresh
// uuid. A positive timeout bounds the exchange; zero means no deadline.
func (q *Queue) Enqueue(id string, req *Request, cb Callback, timeout time.Duration) {
	var r Request
	if req != nil {
		r = *req
	}
	if id == "" {
		id = r.ID
	}
	if id == "" {
		id = uuid.NewString()
	}
	r.ID = id
	req = &r

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.invoke(req.ID, cb, nil, errors.Wrapf(ErrQueueClosed, "request %s", req.ID))
		return
	}
	q.items = append(q.items, &item{req: req, cb: cb, timeout: timeout, enqueued: time.Now()})
	start := !q.draining
	if start {
		q.draining = true
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()

	q.log.Debug().Str("request", req.ID).Str("method", req.Method).Msg("request enqueued")
	if start {
		go q.drain()
	}
}

// ClearQueue drops every item that has not started. Their callbacks are
// never invoked. It returns how many items were dropped.
func (q *Queue) ClearQueue() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	if n > 0 {
		q.log.Debug().Int("dropped", n).Msg("queue cleared")
	}
	return n
}

// Len returns the number of items waiting, excluding the one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until the drain loop is idle or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if !q.draining {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops the backlog, cancels the exchange in flight and refuses new
// items.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.cancel()
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.closed {
			q.draining = false
			close(q.idle)
			q.mu.Unlock()
			q.log.Debug().Msg("queue drained")
			return
		}
		it := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		if !q.process(it) {
			continue
		}
		if q.delay > 0 {
			select {
			case <-time.After(q.delay):
			case <-q.ctx.Done():
			}
		}
	}
}

// process runs one exchange and its callback. It reports whether an exchange
// was attempted.
func (q *Queue) process(it *item) bool {
	t, ok := q.locate()
	if !ok || t == nil {
		q.log.Warn().Str("request", it.req.ID).Msg("no transport available")
		q.invoke(it.req.ID, it.cb, nil, errors.Wrapf(ErrTransportUnavailable, "request %s", it.req.ID))
		return false
	}

	ctx := q.ctx
	if it.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, it.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := t.Send(ctx, it.req)
	if err != nil {
		err = errors.Wrapf(err, "request %s", it.req.ID)
	}
	q.log.Debug().
		Str("request", it.req.ID).
		Str("method", it.req.Method).
		Dur("waited", started.Sub(it.enqueued)).
		Dur("took", time.Since(started)).
		Err(err).
		Msg("request exchanged")

	q.invoke(it.req.ID, it.cb, resp, err)
	return true
}

func (q *Queue) invoke(id string, cb Callback, resp *Response, err error) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Warn().Str("request", id).Interface("panic", r).Msg("callback panicked")
		}
	}()
	cb(resp, err)
}
