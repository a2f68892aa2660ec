package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"wrap-render-server/modules/common/metrics"
	"wrap-render-server/modules/render"
)

// DefaultConcurrency - views in flight at once after the hero
const DefaultConcurrency = 3

// Generator is the remote generation function.
type Generator interface {
	Generate(ctx context.Context, req render.GenerationRequest) (render.RenderResult, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req render.GenerationRequest) (render.RenderResult, error)

func (f GeneratorFunc) Generate(ctx context.Context, req render.GenerationRequest) (render.RenderResult, error) {
	return f(ctx, req)
}

// Options - zero values fall back to defaults
type Options struct {
	Concurrency int
	CallTimeout time.Duration
}

// Scheduler issues one generation call per view and converts every outcome
// into a settled ViewJob. Nothing it returns carries a pending state.
type Scheduler struct {
	gen     Generator
	limit   int
	timeout time.Duration
	log     zerolog.Logger
}

func New(gen Generator, opts Options, log zerolog.Logger) *Scheduler {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Scheduler{gen: gen, limit: limit, timeout: opts.CallTimeout, log: log}
}

// GenerateHero blocks on the first visible view.
func (s *Scheduler) GenerateHero(ctx context.Context, req render.GenerationRequest) render.ViewJob {
	s.log.Info().Str("view", string(req.View)).Str("mode", string(req.Mode)).Msg("🎨 [Scheduler] Generating hero view")
	return s.Dispatch(ctx, req, 1)
}

// GenerateViews runs one concurrent batch. onSettle, when set, is called once
// per view as it settles and never concurrently with itself. Results are in
// request order; a failed view never cancels its siblings.
func (s *Scheduler) GenerateViews(
	ctx context.Context,
	reqs []render.GenerationRequest,
	onSettle func(render.ViewJob),
) []render.ViewJob {
	jobs := make([]render.ViewJob, len(reqs))
	if len(reqs) == 0 {
		return jobs
	}

	s.log.Info().Int("views", len(reqs)).Int("concurrency", s.limit).Msg("🚀 [Scheduler] Dispatching view batch")

	var settleMu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.limit)

	for i, req := range reqs {
		g.Go(func() error {
			job := s.Dispatch(ctx, req, 1)
			jobs[i] = job

			if onSettle != nil {
				settleMu.Lock()
				defer settleMu.Unlock()
				s.safeSettle(onSettle, job)
			}
			return nil
		})
	}
	_ = g.Wait()

	return jobs
}

// Dispatch performs one call for req. Errors and panics become a failed job.
func (s *Scheduler) Dispatch(ctx context.Context, req render.GenerationRequest, attempt int) (job render.ViewJob) {
	job = render.NewViewJob(req.View, attempt)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("view", string(req.View)).Msg("❌ [Scheduler] Generator panicked")
			job = job.Fail(fmt.Errorf("%w: generator panic: %v", render.ErrRemote, r))
		}
		s.observe(req, job)
	}()

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.gen.Generate(callCtx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("view", string(req.View)).Int("attempt", attempt).Msg("⚠️  [Scheduler] View failed")
		return job.Fail(asRemote(err))
	}
	if res.URL == "" {
		return job.Fail(fmt.Errorf("%w: empty render url for %s", render.ErrRemote, req.View))
	}

	s.log.Info().Str("view", string(req.View)).Str("url", res.URL).Msg("✅ [Scheduler] View generated")
	return job.Succeed(res)
}

func (s *Scheduler) safeSettle(onSettle func(render.ViewJob), job render.ViewJob) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("view", string(job.View)).Msg("❌ [Scheduler] Settle callback panicked")
		}
	}()
	onSettle(job)
}

func (s *Scheduler) observe(req render.GenerationRequest, job render.ViewJob) {
	status := "succeeded"
	if !job.Succeeded() {
		status = "failed"
	}
	metrics.ViewGenerations.WithLabelValues(string(req.Mode), string(req.View), status).Inc()
	if d := job.Duration(); d > 0 {
		metrics.ViewDuration.WithLabelValues(string(req.View)).Observe(d.Seconds())
	}
}

// asRemote keeps typed errors and tags anything else as a remote failure.
func asRemote(err error) error {
	if errors.Is(err, render.ErrRemote) || errors.Is(err, render.ErrAuthRequired) {
		return err
	}
	return fmt.Errorf("%w: %w", render.ErrRemote, err)
}
