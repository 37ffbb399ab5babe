// Package events defines the notifications a sequencer publishes and the
// observer bus that fans them out.
package events

import (
	"sync"
	"time"
)

// Kind enumerates sequencer notification kinds.
type Kind string

const (
	KindGuideStarted       Kind = "guide_started"
	KindStepActivated      Kind = "step_activated"
	KindStepCompleted      Kind = "step_completed"
	KindCompletionRejected Kind = "completion_rejected"
	KindRollback           Kind = "rollback"
	KindGuideFinished      Kind = "guide_finished"
)

// Reasons attached to rejected completions and rollbacks.
const (
	ReasonNoActiveStep  = "no_active_step"
	ReasonStepMismatch  = "step_mismatch"
	ReasonOrderingGuard = "ordering_guard"
	ReasonRequested     = "requested"
)

// Event is one notification. Index fields are -1 when not applicable.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	GuideID   string    `json:"guide_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	Index     int       `json:"index"`

	// Rollback: the index/step the caller asked for before redirection.
	RequestedIndex  int    `json:"requested_index,omitempty"`
	RequestedStepID string `json:"requested_step_id,omitempty"`

	// Forced marks ordering-guard rollbacks, as opposed to caller-requested ones.
	Forced  bool   `json:"forced,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Restart bool   `json:"restart,omitempty"`
}

// Listener receives notifications synchronously from the publisher.
type Listener interface {
	HandleEvent(e Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(e Event)

// HandleEvent implements Listener.
func (f ListenerFunc) HandleEvent(e Event) { f(e) }

// Bus is an observer list. Any number of listeners may subscribe; each
// receives every event. No ordering is promised across listeners.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	order     []int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers a listener and returns a function that removes it.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, o := range b.order {
				if o == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Len returns the number of subscribed listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Publish delivers e to a snapshot of the current listeners. Listeners may
// subscribe or unsubscribe from inside HandleEvent.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	snapshot := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.listeners[id])
	}
	b.mu.Unlock()

	for _, l := range snapshot {
		l.HandleEvent(e)
	}
}
