// Package sequencer implements the guided-progression state machine: it walks
// a learner through a guide's steps in order, redirecting out-of-order
// activations to the earliest unfinished step.
//
// A Sequencer is not safe for concurrent use. Callers serialise access, as
// session.Session does.
package sequencer

import (
	"time"

	"github.com/huandu/go-clone"
	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/narrate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TemplateSource resolves guide ids to immutable templates.
type TemplateSource interface {
	LookupGuideTemplate(id string) (*schema.Guide, bool)
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithNarrator sets the narration output channel.
func WithNarrator(n narrate.Narrator) Option {
	return func(s *Sequencer) { s.narrator = n }
}

// WithBus publishes notifications on an existing bus.
func WithBus(b *events.Bus) Option {
	return func(s *Sequencer) { s.bus = b }
}

// WithClock overrides the clock used to stamp notifications.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

// WithLogger overrides the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sequencer) { s.log = l }
}

// Sequencer is the step state machine over one guide runtime at a time.
type Sequencer struct {
	templates TemplateSource
	bus       *events.Bus
	narrator  narrate.Narrator
	silenced  bool
	now       func() time.Time
	log       zerolog.Logger

	template *schema.Guide // last loaded template, never mutated
	runtime  *schema.Guide // per-session deep copy; owns Completed flags
	current  int           // -1 when no step is current
	finished bool
}

// New creates a sequencer reading templates from src.
func New(src TemplateSource, opts ...Option) *Sequencer {
	s := &Sequencer{
		templates: src,
		now:       time.Now,
		log:       log.Logger,
		current:   -1,
	}
	for _, o := range opts {
		o(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}
	return s
}

// Subscribe registers a notification listener.
func (s *Sequencer) Subscribe(l events.Listener) (unsubscribe func()) {
	return s.bus.Subscribe(l)
}

// SuppressNarration silences (or restores) the narration channel.
func (s *Sequencer) SuppressNarration(on bool) {
	s.silenced = on
}

// NarrationSuppressed reports whether narration is currently silenced.
func (s *Sequencer) NarrationSuppressed() bool {
	return s.silenced
}

// SetNarrator replaces the narration output channel.
func (s *Sequencer) SetNarrator(n narrate.Narrator) {
	s.narrator = n
}

// ---------------------------------------------------------------------------
// Guide control
// ---------------------------------------------------------------------------

// LoadGuide starts a fresh runtime of the named guide, discarding any current
// progress, and activates its first step.
func (s *Sequencer) LoadGuide(guideID string) error {
	tmpl, ok := s.templates.LookupGuideTemplate(guideID)
	if !ok {
		return &GuideNotFoundError{GuideID: guideID}
	}
	s.template = tmpl
	s.start(false)
	return nil
}

// RestartGuide re-clones the last loaded template and activates step 0.
func (s *Sequencer) RestartGuide() error {
	if s.template == nil {
		return &GuideNotLoadedError{Op: "restart"}
	}
	s.start(true)
	return nil
}

func (s *Sequencer) start(restart bool) {
	s.runtime = newRuntime(s.template)
	s.current = -1
	s.finished = false

	s.log.Debug().Str("guide", s.runtime.ID()).Int("steps", len(s.runtime.Steps)).Bool("restart", restart).Msg("guide started")
	s.publish(events.Event{Kind: events.KindGuideStarted, Index: -1, Restart: restart})

	if len(s.runtime.Steps) > 0 {
		s.activate(0)
	}
}

// newRuntime deep-copies a template so completion flags never leak between
// sessions, and clears every flag.
func newRuntime(tmpl *schema.Guide) *schema.Guide {
	rt := clone.Clone(tmpl).(*schema.Guide)
	for i := range rt.Steps {
		rt.Steps[i].Completed = false
	}
	return rt
}

// ActivateStep makes the step at index current. If an earlier step is still
// incomplete the request is redirected to the earliest such step and a forced
// rollback is published; the caller gets no error for that.
func (s *Sequencer) ActivateStep(index int) error {
	if s.runtime == nil {
		return &GuideNotLoadedError{Op: "activate"}
	}
	if index < 0 || index >= len(s.runtime.Steps) {
		return &InvalidStepIndexError{Index: index, Count: len(s.runtime.Steps)}
	}
	s.activate(index)
	return nil
}

// ActivateStepByID resolves id to an index and calls ActivateStep.
func (s *Sequencer) ActivateStepByID(stepID string) error {
	if s.runtime == nil {
		return &GuideNotLoadedError{Op: "activate"}
	}
	idx := s.runtime.StepIndex(stepID)
	if idx < 0 {
		return &StepNotFoundError{GuideID: s.runtime.ID(), StepID: stepID}
	}
	return s.ActivateStep(idx)
}

// activate applies the ordering guard and makes the resulting step current.
// index must be in range.
func (s *Sequencer) activate(index int) {
	steps := s.runtime.Steps
	target := index
	if r := s.firstIncompleteBefore(index); r >= 0 {
		s.log.Debug().
			Str("guide", s.runtime.ID()).
			Str("requested", steps[index].ID).
			Str("redirected", steps[r].ID).
			Msg("ordering guard: forced rollback")
		s.publish(events.Event{
			Kind:            events.KindRollback,
			StepID:          steps[r].ID,
			Index:           r,
			RequestedIndex:  index,
			RequestedStepID: steps[index].ID,
			Forced:          true,
			Reason:          events.ReasonOrderingGuard,
		})
		target = r
	}

	s.current = target
	s.finished = false
	steps[target].Completed = false

	s.log.Debug().Str("guide", s.runtime.ID()).Str("step", steps[target].ID).Int("index", target).Msg("step activated")
	s.publish(events.Event{Kind: events.KindStepActivated, StepID: steps[target].ID, Index: target})
	s.narrate(target)
}

func (s *Sequencer) firstIncompleteBefore(index int) int {
	for i := 0; i < index; i++ {
		if !s.runtime.Steps[i].Completed {
			return i
		}
	}
	return -1
}

// CompleteStep marks the current step done and moves to the next incomplete
// step, or finishes the guide. A stepID that is not the current step (or no
// current step at all) leaves state untouched, publishes a rejected
// completion and returns false.
func (s *Sequencer) CompleteStep(stepID string) bool {
	if s.runtime == nil || s.current < 0 {
		s.log.Warn().Str("step", stepID).Msg("completion rejected: no active step")
		s.publish(events.Event{
			Kind:            events.KindCompletionRejected,
			Index:           -1,
			RequestedStepID: stepID,
			Reason:          events.ReasonNoActiveStep,
		})
		return false
	}

	steps := s.runtime.Steps
	cur := &steps[s.current]
	if cur.ID != stepID {
		s.log.Warn().Str("step", stepID).Str("current", cur.ID).Msg("completion rejected: step mismatch")
		s.publish(events.Event{
			Kind:            events.KindCompletionRejected,
			StepID:          cur.ID,
			Index:           s.current,
			RequestedStepID: stepID,
			Reason:          events.ReasonStepMismatch,
		})
		return false
	}

	cur.Completed = true
	s.publish(events.Event{Kind: events.KindStepCompleted, StepID: cur.ID, Index: s.current})

	// Plain forward scan; the guard in activate trivially passes for its result.
	for i := s.current + 1; i < len(steps); i++ {
		if !steps[i].Completed {
			s.activate(i)
			return true
		}
	}

	s.current = -1
	s.finished = true
	s.log.Debug().Str("guide", s.runtime.ID()).Msg("guide finished")
	s.publish(events.Event{Kind: events.KindGuideFinished, Index: -1})
	return true
}

// RollbackOneStep reopens the current step and the one before it, making the
// previous step current. This is a caller-requested rollback and is published
// with Forced=false.
func (s *Sequencer) RollbackOneStep() error {
	if s.runtime == nil {
		return &GuideNotLoadedError{Op: "rollback"}
	}
	if s.current < 0 {
		return &NoActiveStepError{GuideID: s.runtime.ID()}
	}
	if s.current == 0 {
		return &AtFirstStepError{GuideID: s.runtime.ID()}
	}

	steps := s.runtime.Steps
	from := s.current
	target := from - 1
	steps[from].Completed = false

	s.log.Debug().Str("guide", s.runtime.ID()).Str("from", steps[from].ID).Str("to", steps[target].ID).Msg("rollback requested")
	s.publish(events.Event{
		Kind:            events.KindRollback,
		StepID:          steps[target].ID,
		Index:           target,
		RequestedIndex:  target,
		RequestedStepID: steps[target].ID,
		Reason:          events.ReasonRequested,
	})
	s.activate(target)
	return nil
}

// ---------------------------------------------------------------------------
// Read access
// ---------------------------------------------------------------------------

// Loaded reports whether a guide runtime exists.
func (s *Sequencer) Loaded() bool {
	return s.runtime != nil
}

// Guide returns the template of the loaded guide (read-only), or nil.
func (s *Sequencer) Guide() *schema.Guide {
	return s.template
}

// Current returns the current step, its index, and whether one exists.
func (s *Sequencer) Current() (schema.Step, int, bool) {
	if s.runtime == nil || s.current < 0 {
		return schema.Step{}, -1, false
	}
	return s.runtime.Steps[s.current], s.current, true
}

// Steps returns a copy of the runtime steps with their completion flags.
func (s *Sequencer) Steps() []schema.Step {
	if s.runtime == nil {
		return nil
	}
	out := make([]schema.Step, len(s.runtime.Steps))
	copy(out, s.runtime.Steps)
	return out
}

// Finished reports whether every step has been completed in order.
func (s *Sequencer) Finished() bool {
	return s.finished
}

// Progress returns the number of completed steps and the total.
func (s *Sequencer) Progress() (done, total int) {
	if s.runtime == nil {
		return 0, 0
	}
	for _, st := range s.runtime.Steps {
		if st.Completed {
			done++
		}
	}
	return done, len(s.runtime.Steps)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func (s *Sequencer) publish(e events.Event) {
	e.Timestamp = s.now()
	if s.runtime != nil {
		e.GuideID = s.runtime.ID()
	}
	s.bus.Publish(e)
}

func (s *Sequencer) narrate(index int) {
	if s.silenced || s.narrator == nil {
		return
	}
	st := s.runtime.Steps[index]
	s.narrator.Narrate(narrate.Narration{
		GuideID:    s.runtime.ID(),
		GuideTitle: s.runtime.Meta.Title,
		StepID:     st.ID,
		Title:      st.Title,
		Body:       st.Description,
		Highlight:  st.Highlight,
		Index:      index,
		Total:      len(s.runtime.Steps),
	})
}
