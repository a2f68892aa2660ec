package qualitygate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrap-render-server/modules/common/logger"
	"wrap-render-server/modules/render"
)

// queuedInspector returns verdicts in order, repeating the last one.
type queuedInspector struct {
	mu       sync.Mutex
	verdicts []render.QualityVerdict
	err      error
	urls     []string
}

func (q *queuedInspector) Inspect(_ context.Context, url, _ string) (render.QualityVerdict, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.urls = append(q.urls, url)
	if q.err != nil {
		return render.QualityVerdict{}, q.err
	}
	v := q.verdicts[0]
	if len(q.verdicts) > 1 {
		q.verdicts = q.verdicts[1:]
	}
	return v, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []render.GenerationRequest
	fail bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req render.GenerationRequest, attempt int) render.ViewJob {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()

	job := render.NewViewJob(req.View, attempt)
	if d.fail {
		return job.Fail(render.ErrRemote)
	}
	return job.Succeed(render.RenderResult{URL: "https://cdn/side-regen.webp", RenderID: "r-regen"})
}

func gradientBase() render.GenerationRequest {
	return render.GenerationRequest{
		Vehicle:        render.VehicleIdentity{Year: "2023", Make: "Porsche", Model: "911"},
		Mode:           render.ModeGradient,
		View:           render.ViewSide,
		RevisionPrompt: "keep the wheels black",
		SkipLookups:    true,
	}
}

func sideJob() render.ViewJob {
	return render.NewViewJob(render.ViewSide, 1).Succeed(render.RenderResult{URL: "https://cdn/side.webp", RenderID: "r1"})
}

func TestRunRegeneratesHardLineOnce(t *testing.T) {
	inspector := &queuedInspector{verdicts: []render.QualityVerdict{
		{Score: 2, HasHardLine: true},
		{Score: 4},
	}}
	dispatcher := &recordingDispatcher{}
	gate := New(inspector, dispatcher, "", logger.Nop())

	final, replaced := gate.Run(context.Background(), sideJob(), gradientBase())

	require.True(t, replaced)
	assert.Equal(t, "https://cdn/side-regen.webp", final.URL)
	assert.Equal(t, 2, final.Attempt)
	require.Len(t, dispatcher.reqs, 1)

	req := dispatcher.reqs[0]
	assert.True(t, req.BypassCache)
	assert.Equal(t, render.ViewSide, req.View)
	assert.Contains(t, req.RevisionPrompt, "keep the wheels black")
	assert.Contains(t, req.RevisionPrompt, "hard seam")
	assert.Contains(t, req.RevisionPrompt, "[quality-retry attempt 2/2]")
	assert.Equal(t, 2, ParseAttempt(req.RevisionPrompt))

	assert.Equal(t, []string{"https://cdn/side.webp", "https://cdn/side-regen.webp"}, inspector.urls)
}

func TestRunNeverExceedsTwoAttempts(t *testing.T) {
	inspector := &queuedInspector{verdicts: []render.QualityVerdict{{Score: 1, HasHardLine: true}}}
	dispatcher := &recordingDispatcher{}
	gate := New(inspector, dispatcher, render.ViewSide, logger.Nop())

	final, replaced := gate.Run(context.Background(), sideJob(), gradientBase())
	assert.True(t, replaced)
	assert.Len(t, dispatcher.reqs, 1)

	// A render that is already the second attempt is never redispatched.
	again, replaced := gate.Run(context.Background(), final, gradientBase())
	assert.False(t, replaced)
	assert.Equal(t, final.URL, again.URL)
	assert.Len(t, dispatcher.reqs, 1)
}

func TestRunHonorsAttemptTagInRevision(t *testing.T) {
	inspector := &queuedInspector{verdicts: []render.QualityVerdict{{Score: 1}}}
	dispatcher := &recordingDispatcher{}
	gate := New(inspector, dispatcher, render.ViewSide, logger.Nop())

	base := gradientBase()
	base.RevisionPrompt = Instruction("", render.QualityVerdict{Score: 1}, 2)

	_, replaced := gate.Run(context.Background(), sideJob(), base)
	assert.False(t, replaced)
	assert.Empty(t, dispatcher.reqs)
}

func TestRunKeepsCleanRender(t *testing.T) {
	inspector := &queuedInspector{verdicts: []render.QualityVerdict{{Score: 5}}}
	dispatcher := &recordingDispatcher{}

	final, replaced := New(inspector, dispatcher, render.ViewSide, logger.Nop()).Run(context.Background(), sideJob(), gradientBase())
	assert.False(t, replaced)
	assert.Equal(t, "https://cdn/side.webp", final.URL)
	assert.Empty(t, dispatcher.reqs)
}

func TestRunFailOpen(t *testing.T) {
	t.Run("inspection error", func(t *testing.T) {
		inspector := &queuedInspector{err: errors.New("vision model offline")}
		dispatcher := &recordingDispatcher{}

		final, replaced := New(inspector, dispatcher, render.ViewSide, logger.Nop()).Run(context.Background(), sideJob(), gradientBase())
		assert.False(t, replaced)
		assert.Equal(t, "https://cdn/side.webp", final.URL)
		assert.Empty(t, dispatcher.reqs)
	})

	t.Run("regeneration error", func(t *testing.T) {
		inspector := &queuedInspector{verdicts: []render.QualityVerdict{{Score: 2, HasHardLine: true}}}
		dispatcher := &recordingDispatcher{fail: true}

		final, replaced := New(inspector, dispatcher, render.ViewSide, logger.Nop()).Run(context.Background(), sideJob(), gradientBase())
		assert.False(t, replaced)
		assert.Equal(t, "https://cdn/side.webp", final.URL)
		assert.Equal(t, render.JobSucceeded, final.State)
		assert.Len(t, dispatcher.reqs, 1)
	})
}

func TestNeedsRegeneration(t *testing.T) {
	tests := []struct {
		verdict render.QualityVerdict
		attempt int
		want    bool
	}{
		{render.QualityVerdict{Score: 3}, 1, true},
		{render.QualityVerdict{Score: 4}, 1, false},
		{render.QualityVerdict{Score: 9, HasHardLine: true}, 1, true},
		{render.QualityVerdict{Score: 1, HasHardLine: true}, 2, false},
		{render.QualityVerdict{Score: 0}, 3, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedsRegeneration(tt.verdict, tt.attempt), "%+v attempt %d", tt.verdict, tt.attempt)
	}
}

func TestApplies(t *testing.T) {
	gate := New(nil, nil, "", logger.Nop())
	assert.True(t, gate.Applies(render.ModeGradient, render.ViewSide))
	assert.False(t, gate.Applies(render.ModeGradient, render.ViewRear))
	assert.False(t, gate.Applies(render.ModeColor, render.ViewSide))
}

func TestInstruction(t *testing.T) {
	first := Instruction("matte finish", render.QualityVerdict{Score: 2}, 2)
	assert.Contains(t, first, "matte finish")
	assert.Contains(t, first, "scored 2")
	assert.NotContains(t, first, "hard seam")

	// Amending an amended instruction does not stack corrections.
	second := Instruction(first, render.QualityVerdict{HasHardLine: true}, 2)
	assert.Equal(t, 1, strings.Count(second, "Quality correction:"))
	assert.Equal(t, 1, strings.Count(second, "[quality-retry"))
	assert.Contains(t, second, "matte finish")

	assert.Equal(t, 0, ParseAttempt("plain revision"))
}

