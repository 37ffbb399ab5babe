package sequencer

import (
	"testing"
	"time"

	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/ormasoftchile/labguide/pkg/guide/registry"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/narrate"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guideOf(id string, stepIDs ...string) *schema.Guide {
	g := &schema.Guide{APIVersion: schema.APIVersionGuide, Meta: schema.GuideMeta{ID: id, Title: id}}
	for _, s := range stepIDs {
		g.Steps = append(g.Steps, schema.Step{ID: s, Title: "Title " + s, Description: "Do " + s})
	}
	return g
}

type recorder struct {
	events []events.Event
}

func (r *recorder) HandleEvent(e events.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []events.Kind {
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) count(k events.Kind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func newTestSequencer(t *testing.T, guides ...*schema.Guide) (*Sequencer, *recorder, *narrate.Recorder) {
	t.Helper()
	reg := registry.New()
	for _, g := range guides {
		require.NoError(t, reg.Register(g))
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	nr := &narrate.Recorder{}
	s := New(reg, WithNarrator(nr), WithClock(func() time.Time { return fixed }))
	rec := &recorder{}
	s.Subscribe(rec)
	return s, rec, nr
}

func currentID(t *testing.T, s *Sequencer) string {
	t.Helper()
	st, _, ok := s.Current()
	if !ok {
		return ""
	}
	return st.ID
}

// assertOrdering checks that every step before the current one is completed.
func assertOrdering(t *testing.T, s *Sequencer) {
	t.Helper()
	_, idx, ok := s.Current()
	if !ok {
		return
	}
	for i, st := range s.Steps()[:idx] {
		assert.True(t, st.Completed, "step %d (%s) incomplete while %d is current", i, st.ID, idx)
	}
}

func TestLoadGuide(t *testing.T) {
	s, rec, nr := newTestSequencer(t, guideOf("g1", "intro", "setup", "finish"))

	require.NoError(t, s.LoadGuide("g1"))
	assert.Equal(t, "intro", currentID(t, s))
	assert.Equal(t, []events.Kind{events.KindGuideStarted, events.KindStepActivated}, rec.kinds())
	assert.Equal(t, "g1", rec.events[0].GuideID)
	assert.False(t, rec.events[0].Restart)

	last, ok := nr.Last()
	require.True(t, ok)
	assert.Equal(t, "Step 1/3: Title intro", last.Heading())
}

func TestLoadGuideNotFound(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "a"))

	err := s.LoadGuide("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGuideNotFound))
	var nf *GuideNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nope", nf.GuideID)
	assert.False(t, s.Loaded())
	assert.Empty(t, rec.events)
}

func TestLoadGuideDiscardsProgress(t *testing.T) {
	s, _, _ := newTestSequencer(t, guideOf("g1", "a", "b"), guideOf("g2", "x", "y"))
	require.NoError(t, s.LoadGuide("g1"))
	require.True(t, s.CompleteStep("a"))

	require.NoError(t, s.LoadGuide("g2"))
	assert.Equal(t, "x", currentID(t, s))
	done, total := s.Progress()
	assert.Equal(t, 0, done)
	assert.Equal(t, 2, total)
}

func TestLoadGuideEmpty(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("empty"))

	require.NoError(t, s.LoadGuide("empty"))
	_, _, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, []events.Kind{events.KindGuideStarted}, rec.kinds())
	assert.False(t, s.CompleteStep("anything"))
	assert.True(t, errors.Is(s.RollbackOneStep(), ErrNoActiveStep))
}

func TestTemplateNeverMutated(t *testing.T) {
	tmpl := guideOf("g1", "a", "b")
	s, _, _ := newTestSequencer(t, tmpl)
	require.NoError(t, s.LoadGuide("g1"))
	require.True(t, s.CompleteStep("a"))

	for _, st := range tmpl.Steps {
		assert.False(t, st.Completed, "template step %s mutated", st.ID)
	}
	assert.True(t, s.Steps()[0].Completed)
}

func TestActivateStepOutOfRange(t *testing.T) {
	s, _, _ := newTestSequencer(t, guideOf("g1", "a", "b"))
	require.NoError(t, s.LoadGuide("g1"))

	for _, idx := range []int{-1, 2, 10} {
		err := s.ActivateStep(idx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidStepIndex), "index %d", idx)
	}
	assert.Equal(t, "a", currentID(t, s))
}

func TestActivateStepWithoutGuide(t *testing.T) {
	s, _, _ := newTestSequencer(t)
	assert.True(t, errors.Is(s.ActivateStep(0), ErrGuideNotLoaded))
	assert.True(t, errors.Is(s.ActivateStepByID("a"), ErrGuideNotLoaded))
	assert.True(t, errors.Is(s.RollbackOneStep(), ErrGuideNotLoaded))
	assert.True(t, errors.Is(s.RestartGuide(), ErrGuideNotLoaded))
}

func TestActivateStepByIDNotFound(t *testing.T) {
	s, _, _ := newTestSequencer(t, guideOf("g1", "a", "b"))
	require.NoError(t, s.LoadGuide("g1"))

	err := s.ActivateStepByID("zzz")
	var nf *StepNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "zzz", nf.StepID)
	assert.Equal(t, "g1", nf.GuideID)
}

func TestForcedRollback(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "s0", "s1", "s2"))
	require.NoError(t, s.LoadGuide("g1"))
	require.True(t, s.CompleteStep("s0"))
	rec.events = nil

	require.NoError(t, s.ActivateStep(2))
	assert.Equal(t, "s1", currentID(t, s))
	assertOrdering(t, s)

	require.Equal(t, []events.Kind{events.KindRollback, events.KindStepActivated}, rec.kinds())
	rb := rec.events[0]
	assert.True(t, rb.Forced)
	assert.Equal(t, events.ReasonOrderingGuard, rb.Reason)
	assert.Equal(t, 1, rb.Index)
	assert.Equal(t, "s1", rb.StepID)
	assert.Equal(t, 2, rb.RequestedIndex)
	assert.Equal(t, "s2", rb.RequestedStepID)
}

func TestForcedRollbackRedirectsToEarliest(t *testing.T) {
	s, _, _ := newTestSequencer(t, guideOf("g1", "a", "b", "c", "d"))
	require.NoError(t, s.LoadGuide("g1"))

	require.NoError(t, s.ActivateStep(3))
	assert.Equal(t, "a", currentID(t, s))
	assertOrdering(t, s)
}

func TestActivateEarlierCompletedStepReopensIt(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "a", "b", "c"))
	require.NoError(t, s.LoadGuide("g1"))
	require.True(t, s.CompleteStep("a"))
	require.True(t, s.CompleteStep("b"))
	rec.events = nil

	require.NoError(t, s.ActivateStepByID("a"))
	assert.Equal(t, "a", currentID(t, s))
	assert.False(t, s.Steps()[0].Completed)
	assert.Equal(t, 0, rec.count(events.KindRollback))
}

func TestCompleteStepMismatch(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "step-0", "step-1"))
	require.NoError(t, s.LoadGuide("g1"))
	before := s.Steps()
	rec.events = nil

	assert.False(t, s.CompleteStep("step-1"))
	assert.Equal(t, "step-0", currentID(t, s))
	assert.Equal(t, before, s.Steps())

	require.Equal(t, []events.Kind{events.KindCompletionRejected}, rec.kinds())
	assert.Equal(t, events.ReasonStepMismatch, rec.events[0].Reason)
	assert.Equal(t, "step-0", rec.events[0].StepID)
	assert.Equal(t, "step-1", rec.events[0].RequestedStepID)
}

func TestCompleteStepNoGuide(t *testing.T) {
	s, rec, _ := newTestSequencer(t)
	assert.False(t, s.CompleteStep("a"))
	require.Len(t, rec.events, 1)
	assert.Equal(t, events.ReasonNoActiveStep, rec.events[0].Reason)
}

func TestGuideFinish(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		s, rec, _ := newTestSequencer(t, guideOf("g", ids...))
		require.NoError(t, s.LoadGuide("g"))

		for i, id := range ids {
			assert.Equal(t, 0, rec.count(events.KindGuideFinished), "finished before step %d", i)
			require.True(t, s.CompleteStep(id))
			assertOrdering(t, s)
		}

		_, _, ok := s.Current()
		assert.False(t, ok)
		assert.True(t, s.Finished())
		assert.Equal(t, 1, rec.count(events.KindGuideFinished))
		assert.Equal(t, events.KindGuideFinished, rec.events[len(rec.events)-1].Kind)
		done, total := s.Progress()
		assert.Equal(t, n, done)
		assert.Equal(t, n, total)

		// Nothing is current anymore, so further completions are rejected.
		assert.False(t, s.CompleteStep(ids[n-1]))
		assert.Equal(t, 1, rec.count(events.KindGuideFinished))
	}
}

func TestRollbackOneStep(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "a", "b", "c"))
	require.NoError(t, s.LoadGuide("g1"))

	err := s.RollbackOneStep()
	var first *AtFirstStepError
	require.True(t, errors.As(err, &first))
	assert.Equal(t, "a", currentID(t, s))

	require.True(t, s.CompleteStep("a"))
	require.True(t, s.CompleteStep("b"))
	rec.events = nil

	require.NoError(t, s.RollbackOneStep())
	assert.Equal(t, "b", currentID(t, s))
	steps := s.Steps()
	assert.True(t, steps[0].Completed)
	assert.False(t, steps[1].Completed)
	assert.False(t, steps[2].Completed)

	require.Equal(t, []events.Kind{events.KindRollback, events.KindStepActivated}, rec.kinds())
	assert.False(t, rec.events[0].Forced)
	assert.Equal(t, events.ReasonRequested, rec.events[0].Reason)
}

func TestRollbackAfterFinish(t *testing.T) {
	s, _, _ := newTestSequencer(t, guideOf("g1", "a"))
	require.NoError(t, s.LoadGuide("g1"))
	require.True(t, s.CompleteStep("a"))
	assert.True(t, errors.Is(s.RollbackOneStep(), ErrNoActiveStep))
}

func TestRestartGuideIdempotent(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "a", "b", "c"))
	require.NoError(t, s.LoadGuide("g1"))
	require.True(t, s.CompleteStep("a"))
	require.True(t, s.CompleteStep("b"))

	require.NoError(t, s.RestartGuide())
	once := s.Steps()
	_, idx1, _ := s.Current()

	require.NoError(t, s.RestartGuide())
	twice := s.Steps()
	_, idx2, _ := s.Current()

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, idx1)
	assert.Equal(t, 0, idx2)
	for _, st := range twice {
		assert.False(t, st.Completed)
	}
	assert.True(t, rec.events[len(rec.events)-2].Restart)
}

func TestNarrationSuppressed(t *testing.T) {
	s, _, nr := newTestSequencer(t, guideOf("g1", "a", "b"))
	s.SuppressNarration(true)
	assert.True(t, s.NarrationSuppressed())
	require.NoError(t, s.LoadGuide("g1"))
	assert.Empty(t, nr.All())

	s.SuppressNarration(false)
	require.True(t, s.CompleteStep("a"))
	require.Len(t, nr.All(), 1)
	assert.Equal(t, "b", nr.All()[0].StepID)
}

func TestScenarioG1(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "intro", "setup", "finish"))

	require.NoError(t, s.LoadGuide("g1"))
	assert.Equal(t, "intro", currentID(t, s))

	require.True(t, s.CompleteStep("intro"))
	assert.Equal(t, "setup", currentID(t, s))

	require.NoError(t, s.ActivateStepByID("finish"))
	assert.Equal(t, "setup", currentID(t, s))
	assert.Equal(t, 1, rec.count(events.KindRollback))

	require.True(t, s.CompleteStep("setup"))
	assert.Equal(t, "finish", currentID(t, s))

	require.True(t, s.CompleteStep("finish"))
	_, _, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, rec.count(events.KindGuideFinished))
}

func TestEventsStamped(t *testing.T) {
	s, rec, _ := newTestSequencer(t, guideOf("g1", "a"))
	require.NoError(t, s.LoadGuide("g1"))
	for _, e := range rec.events {
		assert.Equal(t, 2026, e.Timestamp.Year())
		assert.Equal(t, "g1", e.GuideID)
	}
}
