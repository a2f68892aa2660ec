package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	redisutil "wrap-render-server/modules/common/redis"
	"wrap-render-server/modules/design"
)

const (
	defaultPopTimeout = 5 * time.Second
	retryBackoff      = 5 * time.Second
	defaultInFlight   = 4
)

// Worker drains the render queue and runs each job through the engine.
type Worker struct {
	queue      Queue
	engine     design.Engine
	sem        *semaphore.Weighted
	popTimeout time.Duration
	log        zerolog.Logger
}

// New - inFlight bounds how many queued sessions run at once
func New(queue Queue, engine design.Engine, inFlight int, log zerolog.Logger) *Worker {
	if inFlight <= 0 {
		inFlight = defaultInFlight
	}
	return &Worker{
		queue:      queue,
		engine:     engine,
		sem:        semaphore.NewWeighted(int64(inFlight)),
		popTimeout: defaultPopTimeout,
		log:        log,
	}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().Msgf("👀 [Worker] Watching queue: %s", QueueName)

	for {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			w.log.Info().Msg("🛑 [Worker] Stopped")
			return
		}

		job, err := w.queue.Dequeue(ctx, w.popTimeout)
		if err != nil {
			w.sem.Release(1)
			if ctx.Err() != nil {
				w.log.Info().Msg("🛑 [Worker] Stopped")
				return
			}
			if errors.Is(err, redisutil.ErrQueueEmpty) {
				continue
			}
			w.log.Error().Err(err).Msg("❌ [Worker] Dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryBackoff):
			}
			continue
		}

		w.log.Info().Str("job", job.JobID).Msg("🎯 [Worker] Received job")
		go func() {
			defer w.sem.Release(1)
			w.Process(ctx, job)
		}()
	}
}

// Process runs one job to settlement.
func (w *Worker) Process(ctx context.Context, job Job) {
	log := w.log.With().Str("job", job.JobID).Logger()

	in, err := job.Request.Input()
	if err != nil {
		log.Warn().Err(err).Msg("❌ [Worker] Invalid job payload")
		return
	}
	if in.SessionID == "" {
		in.SessionID = job.JobID
	}

	s, err := w.engine.Start(ctx, in)
	if s == nil {
		log.Warn().Err(err).Msg("🚫 [Worker] Job rejected")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("❌ [Worker] Hero view failed")
	}

	s.Wait()
	snap := s.Snapshot()
	log.Info().
		Int("views", len(snap.Views)).
		Int("failed", len(snap.Failed)).
		Dur("queued", time.Since(job.EnqueuedAt)).
		Msg("✅ [Worker] Job completed")
}
