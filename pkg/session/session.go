// Package session ties one learner's sequencer, exam tracker, event bus and
// request queue together. A Session is the only thing drivers talk to; it
// serialises every sequencer call.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/ormasoftchile/labguide/pkg/guide/exam"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/guide/sequencer"
	"github.com/ormasoftchile/labguide/pkg/narrate"
	"github.com/ormasoftchile/labguide/pkg/queue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is a read-only view of the session for drivers.
type State struct {
	SessionID    string        `json:"session_id"`
	GuideID      string        `json:"guide_id,omitempty"`
	GuideTitle   string        `json:"guide_title,omitempty"`
	Steps        []schema.Step `json:"steps,omitempty"`
	CurrentIndex int           `json:"current_index"`
	Finished     bool          `json:"finished"`
	ExamMode     bool          `json:"exam_mode"`
}

// Current returns the current step, if any.
func (s State) Current() (schema.Step, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Steps) {
		return schema.Step{}, false
	}
	return s.Steps[s.CurrentIndex], true
}

// Option configures a Session.
type Option func(*Session)

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithNarrator sets the tutorial-mode narration channel.
func WithNarrator(n narrate.Narrator) Option {
	return func(s *Session) { s.narrator = n }
}

// WithQueue attaches a request queue. Finished exam guides are reported
// through it with the given per-request timeout.
func WithQueue(q *queue.Queue, timeout time.Duration) Option {
	return func(s *Session) {
		s.queue = q
		s.queueTimeout = timeout
	}
}

// WithGrader sets the pass rule applied to summaries.
func WithGrader(g *exam.Grader) Option {
	return func(s *Session) { s.grader = g }
}

// WithClock overrides the clock for the sequencer and tracker.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger overrides the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is safe for concurrent use. Listeners subscribed through Subscribe
// run while the session lock is held and must not call back into the Session.
type Session struct {
	id           string
	narrator     narrate.Narrator
	queue        *queue.Queue
	queueTimeout time.Duration
	grader       *exam.Grader
	now          func() time.Time
	log          zerolog.Logger

	mu      sync.Mutex
	bus     *events.Bus
	seq     *sequencer.Sequencer
	tracker *exam.Tracker
}

// New creates a session over the given templates.
func New(src sequencer.TemplateSource, opts ...Option) (*Session, error) {
	s := &Session{
		now: time.Now,
		log: log.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.grader == nil {
		g, err := exam.NewGrader("")
		if err != nil {
			return nil, err
		}
		s.grader = g
	}
	s.log = s.log.With().Str("session", s.id).Logger()

	s.bus = events.NewBus()
	s.seq = sequencer.New(src,
		sequencer.WithBus(s.bus),
		sequencer.WithNarrator(s.narrator),
		sequencer.WithClock(s.now),
		sequencer.WithLogger(s.log),
	)
	s.tracker = exam.NewTracker(s.seq, exam.WithClock(s.now), exam.WithLogger(s.log))
	if s.queue != nil {
		s.bus.Subscribe(&reporter{s: s})
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Subscribe registers a notification listener.
func (s *Session) Subscribe(l events.Listener) (unsubscribe func()) {
	return s.bus.Subscribe(l)
}

// Queue returns the attached request queue, or nil.
func (s *Session) Queue() *queue.Queue { return s.queue }

// ---------------------------------------------------------------------------
// Guide control
// ---------------------------------------------------------------------------

// LoadGuide starts a fresh runtime of guideID.
func (s *Session) LoadGuide(guideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.LoadGuide(guideID)
}

// ActivateStep activates a step by index.
func (s *Session) ActivateStep(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.ActivateStep(index)
}

// ActivateStepByID activates a step by id.
func (s *Session) ActivateStepByID(stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.ActivateStepByID(stepID)
}

// CompleteStep reports stepID as done; false means the completion was rejected.
func (s *Session) CompleteStep(stepID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.CompleteStep(stepID)
}

// CompleteCurrent completes whatever step is current.
func (s *Session) CompleteCurrent() (schema.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _, ok := s.seq.Current()
	if !ok {
		return schema.Step{}, false
	}
	return st, s.seq.CompleteStep(st.ID)
}

// RollbackOneStep steps back once.
func (s *Session) RollbackOneStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.RollbackOneStep()
}

// RestartGuide restarts the loaded guide.
func (s *Session) RestartGuide() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.RestartGuide()
}

// State returns a snapshot for drivers.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{
		SessionID:    s.id,
		Steps:        s.seq.Steps(),
		CurrentIndex: -1,
		Finished:     s.seq.Finished(),
		ExamMode:     s.tracker.Enabled(),
	}
	if g := s.seq.Guide(); g != nil {
		st.GuideID = g.ID()
		st.GuideTitle = g.Meta.Title
	}
	if _, idx, ok := s.seq.Current(); ok {
		st.CurrentIndex = idx
	}
	return st
}

// ---------------------------------------------------------------------------
// Exam control
// ---------------------------------------------------------------------------

// EnableExam switches to exam mode: counters reset, narration silenced.
func (s *Session) EnableExam() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Enable()
}

// DisableExam leaves exam mode; the last counters stay readable.
func (s *Session) DisableExam() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Disable()
}

// ExamEnabled reports whether exam mode is on.
func (s *Session) ExamEnabled() bool {
	return s.tracker.Enabled()
}

// ResetExam clears the exam counters.
func (s *Session) ResetExam() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Reset()
}

// StepElapsed returns the recorded time spent on a step.
func (s *Session) StepElapsed(stepID string) time.Duration {
	return s.tracker.StepElapsed(stepID)
}

// Summary returns the graded exam summary for the loaded guide.
func (s *Session) Summary() (exam.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() (exam.Summary, error) {
	sum, err := s.grader.Grade(s.tracker.GetSummary(s.seq.Steps()))
	if err != nil {
		return sum, errors.Wrap(err, "grade summary")
	}
	return sum, nil
}
