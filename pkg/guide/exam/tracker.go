// Package exam implements exam-mode instrumentation: while enabled, a Tracker
// observes a sequencer's notifications, records per-step timing, errors and
// forced rollbacks, and keeps narration silent.
package exam

import (
	"sync"
	"time"

	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Host is what a Tracker attaches to. *sequencer.Sequencer satisfies it.
type Host interface {
	Subscribe(l events.Listener) (unsubscribe func())
	SuppressNarration(on bool)
	NarrationSuppressed() bool
}

// ErrorRecord is one recorded learner error.
type ErrorRecord struct {
	StepID    string    `json:"step_id"`
	Requested string    `json:"requested,omitempty"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the fallback clock used for notifications without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger overrides the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// Tracker is safe for concurrent use; summaries may be read from another
// goroutine while the sequencer drives it.
type Tracker struct {
	host Host
	now  func() time.Time
	log  zerolog.Logger

	mu             sync.Mutex
	enabled        bool
	unsubscribe    func()
	restoreSilence bool

	started   map[string]time.Time
	ended     map[string]time.Time
	errors    int
	rollbacks int
	records   []ErrorRecord
	active    string // step currently timed, "" when none
}

// NewTracker creates a disabled tracker for host.
func NewTracker(host Host, opts ...Option) *Tracker {
	t := &Tracker{
		host: host,
		now:  time.Now,
		log:  log.Logger,
	}
	for _, o := range opts {
		o(t)
	}
	t.resetLocked()
	return t
}

// Enable resets every counter, subscribes to the host and silences narration.
// Enabling an enabled tracker only resets the counters.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	if t.enabled {
		return
	}
	t.enabled = true
	t.restoreSilence = t.host.NarrationSuppressed()
	t.host.SuppressNarration(true)
	t.unsubscribe = t.host.Subscribe(events.ListenerFunc(t.HandleEvent))
	t.log.Debug().Msg("exam instrumentation enabled")
}

// Disable stops recording and restores narration. Counters are kept until
// the next Enable or Reset.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.enabled = false
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	t.host.SuppressNarration(t.restoreSilence)
	t.log.Debug().Msg("exam instrumentation disabled")
}

// Enabled reports whether the tracker is recording.
func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Reset clears every counter without changing the enabled state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *Tracker) resetLocked() {
	t.started = make(map[string]time.Time)
	t.ended = make(map[string]time.Time)
	t.errors = 0
	t.rollbacks = 0
	t.records = nil
	t.active = ""
}

// HandleEvent implements events.Listener. It is a no-op while disabled.
func (t *Tracker) HandleEvent(e events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	at := e.Timestamp
	if at.IsZero() {
		at = t.now()
	}

	switch e.Kind {
	case events.KindGuideStarted:
		t.active = ""
	case events.KindStepActivated:
		// A forced rollback re-activating the current step keeps its clock.
		if _, ok := t.started[e.StepID]; !ok || e.StepID != t.active {
			t.started[e.StepID] = at
		}
		delete(t.ended, e.StepID)
		t.active = e.StepID
	case events.KindStepCompleted:
		t.ended[e.StepID] = at
		t.active = ""
	case events.KindCompletionRejected:
		step := e.StepID
		if step == "" {
			step = e.RequestedStepID
		}
		t.recordErrorLocked(ErrorRecord{StepID: step, Requested: e.RequestedStepID, Reason: e.Reason, At: at})
	case events.KindRollback:
		if !e.Forced {
			return
		}
		t.rollbacks++
		t.recordErrorLocked(ErrorRecord{StepID: e.StepID, Requested: e.RequestedStepID, Reason: e.Reason, At: at})
	}
}

func (t *Tracker) recordErrorLocked(r ErrorRecord) {
	t.errors++
	t.records = append(t.records, r)
	t.log.Debug().Str("step", r.StepID).Str("reason", r.Reason).Int("errors", t.errors).Msg("exam error recorded")
}

// StepElapsed returns the time between a step's activation and its
// completion. Re-activating the step that is already current keeps the
// original start. Steps never completed report zero.
func (t *Tracker) StepElapsed(stepID string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked(stepID)
}

func (t *Tracker) elapsedLocked(stepID string) time.Duration {
	start, ok := t.started[stepID]
	if !ok {
		return 0
	}
	end, ok := t.ended[stepID]
	if !ok || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// Counts returns the raw error and rollback counters.
func (t *Tracker) Counts() (errors, rollbacks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors, t.rollbacks
}

// GetSummary builds a snapshot. Completion is read from the step flags
// passed in, not from recorded timestamps.
func (t *Tracker) GetSummary(steps []schema.Step) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		TotalSteps:     len(steps),
		TotalErrors:    t.errors,
		TotalRollbacks: t.rollbacks,
		StepDurations:  make(map[string]time.Duration, len(steps)),
		Errors:         append([]ErrorRecord(nil), t.records...),
	}
	for _, st := range steps {
		if st.Completed {
			s.Completed++
		}
		d := t.elapsedLocked(st.ID)
		s.StepDurations[st.ID] = d
		s.Elapsed += d
	}
	seen := make(map[string]bool)
	for _, r := range t.records {
		if !seen[r.StepID] {
			seen[r.StepID] = true
			s.ErrorSteps = append(s.ErrorSteps, r.StepID)
		}
	}
	return s
}
