package session

import (
	"context"
	"sync"
	"time"

	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/ormasoftchile/labguide/pkg/guide/exam"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/pkg/errors"
)

var (
	// ErrTimeUp is returned by Run when the plan's time limit expires.
	ErrTimeUp = errors.New("exam time limit reached")
	// ErrNotQuizSection is returned by SubmitQuiz outside a quiz section.
	ErrNotQuizSection = errors.New("current section is not a quiz")
	// ErrPlanOver is returned by SubmitQuiz once the plan has ended.
	ErrPlanOver = errors.New("exam plan is over")
)

// SectionResult records how one plan section ended.
type SectionResult struct {
	SectionID string             `json:"section_id"`
	Kind      schema.SectionKind `json:"kind"`
	Guide     string             `json:"guide,omitempty"`
	Score     float64            `json:"score,omitempty"`
	Summary   *exam.Summary      `json:"summary,omitempty"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Orchestrator walks an exam plan: quiz sections wait for SubmitQuiz,
// experiment sections load their guide in exam mode and end when it finishes.
type Orchestrator struct {
	sess  *Session
	plan  *schema.Plan
	limit time.Duration

	finished chan string
	scores   chan float64
	done     chan struct{}

	mu      sync.Mutex
	index   int
	started time.Time
	results []SectionResult
	over    bool
}

// NewOrchestrator prepares a plan for sess. The plan should already be
// validated; a malformed time limit is still reported here.
func NewOrchestrator(sess *Session, plan *schema.Plan) (*Orchestrator, error) {
	var limit time.Duration
	if plan.Meta.TimeLimit != "" {
		d, err := time.ParseDuration(plan.Meta.TimeLimit)
		if err != nil {
			return nil, errors.Wrapf(err, "plan %q: time_limit", plan.Meta.ID)
		}
		limit = d
	}
	return &Orchestrator{
		sess:     sess,
		plan:     plan,
		limit:    limit,
		finished: make(chan string, 8),
		scores:   make(chan float64),
		done:     make(chan struct{}),
		index:    -1,
	}, nil
}

// Run drives the plan until every section ended, the time limit expired
// (ErrTimeUp) or ctx is done. Run must be called at most once.
func (o *Orchestrator) Run(ctx context.Context) error {
	unsubscribe := o.sess.Subscribe(events.ListenerFunc(func(e events.Event) {
		if e.Kind != events.KindGuideFinished {
			return
		}
		select {
		case o.finished <- e.GuideID:
		default:
			o.sess.log.Warn().Str("guide", e.GuideID).Msg("orchestrator dropped finish notification")
		}
	}))
	defer unsubscribe()
	defer o.end()

	var deadline <-chan time.Time
	if o.limit > 0 {
		timer := time.NewTimer(o.limit)
		defer timer.Stop()
		deadline = timer.C
	}

	if err := o.advance(); err != nil {
		return err
	}
	for {
		sec, _, ok := o.Current()
		if !ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			o.sess.log.Info().Str("plan", o.plan.Meta.ID).Str("section", sec.ID).Msg("time limit reached")
			o.closeSection(0)
			return ErrTimeUp
		case guideID := <-o.finished:
			if sec.Kind != schema.SectionExperiment || guideID != sec.Guide {
				continue
			}
			o.closeSection(0)
			if err := o.advance(); err != nil {
				return err
			}
		case score := <-o.scores:
			if sec.Kind != schema.SectionQuiz {
				continue
			}
			o.closeSection(score)
			if err := o.advance(); err != nil {
				return err
			}
		}
	}
}

// SubmitQuiz ends the current quiz section with score. It blocks until Run
// accepts it or ctx is done.
func (o *Orchestrator) SubmitQuiz(ctx context.Context, score float64) error {
	sec, _, ok := o.Current()
	if !ok {
		return ErrPlanOver
	}
	if sec.Kind != schema.SectionQuiz {
		return ErrNotQuizSection
	}
	select {
	case o.scores <- score:
		return nil
	case <-o.done:
		return ErrPlanOver
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the section in progress.
func (o *Orchestrator) Current() (schema.Section, int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.over || o.index < 0 || o.index >= len(o.plan.Sections) {
		return schema.Section{}, -1, false
	}
	return o.plan.Sections[o.index], o.index, true
}

// Results returns the sections ended so far.
func (o *Orchestrator) Results() []SectionResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]SectionResult(nil), o.results...)
}

// advance starts the next section.
func (o *Orchestrator) advance() error {
	o.mu.Lock()
	o.index++
	if o.index >= len(o.plan.Sections) {
		o.over = true
		o.mu.Unlock()
		o.sess.log.Info().Str("plan", o.plan.Meta.ID).Msg("exam plan complete")
		return nil
	}
	sec := o.plan.Sections[o.index]
	o.started = o.sess.now()
	o.mu.Unlock()

	o.sess.log.Info().Str("plan", o.plan.Meta.ID).Str("section", sec.ID).Str("kind", string(sec.Kind)).Msg("section started")
	switch sec.Kind {
	case schema.SectionExperiment:
		o.sess.EnableExam()
		if err := o.sess.LoadGuide(sec.Guide); err != nil {
			return errors.Wrapf(err, "section %q", sec.ID)
		}
	default:
		o.sess.DisableExam()
	}
	return nil
}

// closeSection records the result of the current section.
func (o *Orchestrator) closeSection(score float64) {
	sec, _, ok := o.Current()
	if !ok {
		return
	}
	res := SectionResult{SectionID: sec.ID, Kind: sec.Kind, Guide: sec.Guide}
	if sec.Kind == schema.SectionExperiment {
		if sum, err := o.sess.Summary(); err == nil {
			res.Summary = &sum
		} else {
			o.sess.log.Warn().Err(err).Str("section", sec.ID).Msg("section summary unavailable")
		}
	} else {
		res.Score = score
	}

	o.mu.Lock()
	res.Elapsed = o.sess.now().Sub(o.started)
	o.results = append(o.results, res)
	o.mu.Unlock()
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.over = true
	o.mu.Unlock()
	close(o.done)
	o.sess.DisableExam()
}
