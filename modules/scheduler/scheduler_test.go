package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrap-render-server/modules/common/logger"
	"wrap-render-server/modules/render"
)

func requestsFor(views ...render.ViewType) []render.GenerationRequest {
	base := render.GenerationRequest{
		Vehicle: render.VehicleIdentity{Year: "2024", Make: "Ford", Model: "Mustang"},
		Mode:    render.ModeColor,
	}
	out := make([]render.GenerationRequest, len(views))
	for i, v := range views {
		out[i] = base.WithView(v)
	}
	return out
}

func TestGenerateHero(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, req render.GenerationRequest) (render.RenderResult, error) {
		return render.RenderResult{URL: "https://cdn/" + string(req.View) + ".webp", RenderID: "r-hero"}, nil
	})
	s := New(gen, Options{}, logger.Nop())

	job := s.GenerateHero(context.Background(), requestsFor(render.ViewHero)[0])
	assert.True(t, job.Succeeded())
	assert.Equal(t, "https://cdn/hero.webp", job.URL)
	assert.Equal(t, "r-hero", job.RenderID)
	assert.Equal(t, 1, job.Attempt)
}

func TestGenerateHeroFailureIsTyped(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, render.GenerationRequest) (render.RenderResult, error) {
		return render.RenderResult{}, errors.New("upstream 502")
	})
	job := New(gen, Options{}, logger.Nop()).GenerateHero(context.Background(), requestsFor(render.ViewHero)[0])

	assert.Equal(t, render.JobFailed, job.State)
	assert.ErrorIs(t, job.Err, render.ErrRemote)
	assert.Equal(t, render.CodeRenderFailed, render.Classify(job.Err))
}

func TestGenerateViewsPartialFailure(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, req render.GenerationRequest) (render.RenderResult, error) {
		switch req.View {
		case render.ViewRear:
			return render.RenderResult{}, errors.New("timeout")
		case render.ViewTop:
			panic("nil pointer in backend")
		}
		return render.RenderResult{URL: "https://cdn/" + string(req.View) + ".webp"}, nil
	})
	s := New(gen, Options{Concurrency: 3}, logger.Nop())

	var mu sync.Mutex
	var settled []render.ViewType
	jobs := s.GenerateViews(context.Background(), requestsFor(render.ViewSide, render.ViewRear, render.ViewTop), func(job render.ViewJob) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, job.View)
	})

	require.Len(t, jobs, 3)
	assert.Equal(t, render.ViewSide, jobs[0].View)
	assert.True(t, jobs[0].Succeeded())
	assert.Equal(t, render.JobFailed, jobs[1].State)
	assert.Equal(t, render.JobFailed, jobs[2].State)
	assert.ErrorIs(t, jobs[2].Err, render.ErrRemote)
	assert.ElementsMatch(t, []render.ViewType{render.ViewSide, render.ViewRear, render.ViewTop}, settled)
}

func TestGenerateViewsRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	gen := GeneratorFunc(func(_ context.Context, req render.GenerationRequest) (render.RenderResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return render.RenderResult{URL: "u-" + string(req.View)}, nil
	})
	s := New(gen, Options{Concurrency: 2}, logger.Nop())

	jobs := s.GenerateViews(context.Background(),
		requestsFor(render.ViewSide, render.ViewRear, render.ViewTop, render.ViewFront, render.ViewDetail), nil)

	assert.Len(t, jobs, 5)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	for _, job := range jobs {
		assert.True(t, job.Succeeded())
	}
}

func TestOnSettleNeverConcurrent(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, req render.GenerationRequest) (render.RenderResult, error) {
		return render.RenderResult{URL: "u-" + string(req.View)}, nil
	})
	s := New(gen, Options{Concurrency: 4}, logger.Nop())

	var active int32
	var overlap atomic.Bool
	s.GenerateViews(context.Background(), requestsFor(render.ViewSide, render.ViewRear, render.ViewTop, render.ViewFront), func(render.ViewJob) {
		if atomic.AddInt32(&active, 1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
	})

	assert.False(t, overlap.Load())
}

func TestDispatchEmptyURLFails(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, render.GenerationRequest) (render.RenderResult, error) {
		return render.RenderResult{}, nil
	})
	job := New(gen, Options{}, logger.Nop()).Dispatch(context.Background(), requestsFor(render.ViewSide)[0], 2)
	assert.Equal(t, render.JobFailed, job.State)
	assert.Equal(t, 2, job.Attempt)
}

func TestDispatchAppliesCallTimeout(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, _ render.GenerationRequest) (render.RenderResult, error) {
		<-ctx.Done()
		return render.RenderResult{}, ctx.Err()
	})
	s := New(gen, Options{CallTimeout: 10 * time.Millisecond}, logger.Nop())

	job := s.Dispatch(context.Background(), requestsFor(render.ViewSide)[0], 1)
	assert.Equal(t, render.JobFailed, job.State)
	assert.ErrorIs(t, job.Err, context.DeadlineExceeded)
}

func TestSettleCallbackPanicIsContained(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, req render.GenerationRequest) (render.RenderResult, error) {
		return render.RenderResult{URL: "u-" + string(req.View)}, nil
	})
	s := New(gen, Options{}, logger.Nop())

	assert.NotPanics(t, func() {
		jobs := s.GenerateViews(context.Background(), requestsFor(render.ViewSide), func(render.ViewJob) {
			panic("subscriber gone")
		})
		assert.True(t, jobs[0].Succeeded())
	})
}
