package main

import (
	"context"

	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/ormasoftchile/labguide/pkg/guide/exam"
	"github.com/ormasoftchile/labguide/pkg/guide/registry"
	"github.com/ormasoftchile/labguide/pkg/guide/trace"
	"github.com/ormasoftchile/labguide/pkg/logging"
	"github.com/ormasoftchile/labguide/pkg/narrate"
	"github.com/ormasoftchile/labguide/pkg/queue"
	"github.com/ormasoftchile/labguide/pkg/session"
	"github.com/ormasoftchile/labguide/pkg/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// app is everything a driver command needs: guides, a session wired to the
// result queue, and the event router fanning notifications out.
type app struct {
	reg    *registry.Registry
	sess   *session.Session
	queue  *queue.Queue
	rpc    *transport.JSONRPC
	router *events.Router
	trace  *trace.Writer
}

// newApp builds the runtime from cfg. passRule overrides the configured rule
// when non-empty.
func newApp(narrator narrate.Narrator, passRule string) (*app, error) {
	a := &app{}
	reg, err := loadRegistry(cfg.GuidesDir)
	if err != nil {
		return nil, err
	}
	a.reg = reg

	if passRule == "" {
		passRule = cfg.Exam.PassRule
	}
	grader, err := exam.NewGrader(passRule)
	if err != nil {
		return nil, err
	}

	sw := &transport.Switch{}
	switch {
	case cfg.Transport.URL != "":
		sw.Set(transport.NewHTTP(cfg.Transport.URL, cfg.Transport.Token))
	case len(cfg.Transport.Command) > 0:
		a.rpc = transport.NewJSONRPC(cfg.Transport.Command)
		sw.Set(a.rpc)
	default:
		log.Debug().Msg("No transport configured, exam results stay local")
	}
	a.queue = queue.New(sw.Locate, queue.WithDelay(cfg.Queue.Delay))

	sess, err := session.New(reg,
		session.WithNarrator(narrator),
		session.WithQueue(a.queue, cfg.Queue.Timeout),
		session.WithGrader(grader),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sess = sess

	if cfg.TraceFile != "" {
		tw, err := trace.NewFileWriter(cfg.TraceFile, sess.ID())
		if err != nil {
			a.close()
			return nil, err
		}
		a.trace = tw
		sess.Subscribe(tw)
	}

	router, err := events.NewRouter(events.WithLogger(logging.NewWatermillLogger(log.Logger)))
	if err != nil {
		a.close()
		return nil, err
	}
	a.router = router
	router.AddHandler("log", func(ctx context.Context, e events.Event) error {
		log.Debug().
			Str("kind", string(e.Kind)).
			Str("guide", e.GuideID).
			Str("step", e.StepID).
			Msg("Guide event")
		return nil
	})
	sess.Subscribe(router.Sink())

	log.Info().Str("session", sess.ID()).Int("guides", len(reg.IDs())).Msg("Session ready")
	return a, nil
}

// run runs the event router next to the driver. The driver starts once the
// router is subscribed; when it returns everything is shut down.
func (a *app) run(ctx context.Context, driver func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.router.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		select {
		case <-a.router.Running():
		case <-ctx.Done():
			return nil
		}
		return driver(ctx)
	})
	err := g.Wait()
	a.close()
	return err
}

// close flushes pending results and releases resources.
func (a *app) close() {
	if a.queue != nil {
		wctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.Timeout+cfg.Queue.Delay)
		if err := a.queue.Wait(wctx); err != nil {
			log.Warn().Err(err).Int("pending", a.queue.Len()).Msg("Dropping unsent results")
		}
		cancel()
		a.queue.Close()
	}
	if a.rpc != nil {
		if err := a.rpc.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("Transport helper did not shut down cleanly")
		}
	}
	if a.router != nil {
		if err := a.router.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close event router")
		}
	}
	if a.trace != nil {
		if err := a.trace.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close trace file")
		}
	}
}
