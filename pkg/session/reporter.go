package session

import (
	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/ormasoftchile/labguide/pkg/guide/exam"
	"github.com/ormasoftchile/labguide/pkg/queue"
)

// MethodSubmit is the remote method finished exam guides are reported to.
const MethodSubmit = "exam/submit"

// Submission is the payload of MethodSubmit.
type Submission struct {
	SessionID string       `json:"session_id"`
	GuideID   string       `json:"guide_id"`
	Summary   exam.Summary `json:"summary"`
}

// reporter enqueues a submission when a guide finishes in exam mode. It runs
// inside a locked session call.
type reporter struct {
	s *Session
}

func (r *reporter) HandleEvent(e events.Event) {
	if e.Kind != events.KindGuideFinished || !r.s.tracker.Enabled() {
		return
	}
	sum, err := r.s.summaryLocked()
	if err != nil {
		r.s.log.Warn().Err(err).Msg("summary not reported")
		return
	}
	req, err := queue.NewRequest(MethodSubmit, Submission{SessionID: r.s.id, GuideID: e.GuideID, Summary: sum})
	if err != nil {
		r.s.log.Warn().Err(err).Msg("summary not reported")
		return
	}

	logger := r.s.log
	guideID := e.GuideID
	r.s.queue.Enqueue("", req, func(resp *queue.Response, err error) {
		if err != nil {
			logger.Warn().Err(err).Str("guide", guideID).Msg("exam submission failed")
			return
		}
		logger.Info().Str("guide", guideID).Str("request", resp.RequestID).Msg("exam submitted")
	}, r.s.queueTimeout)
}
