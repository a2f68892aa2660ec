package qualitygate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"wrap-render-server/modules/common/metrics"
	"wrap-render-server/modules/render"
)

const (
	// MaxAttempts counts the original render.
	MaxAttempts = 2
	// LowQualityThreshold - scores at or below this trigger a regeneration
	LowQualityThreshold = 3
)

// Inspector is the remote quality inspection function.
type Inspector interface {
	Inspect(ctx context.Context, renderURL, renderID string) (render.QualityVerdict, error)
}

// Dispatcher issues one generation attempt and always returns a settled job.
type Dispatcher interface {
	Dispatch(ctx context.Context, req render.GenerationRequest, attempt int) render.ViewJob
}

// Gate inspects the defect-prone view and regenerates it within the attempt cap.
type Gate struct {
	inspector  Inspector
	dispatcher Dispatcher
	view       render.ViewType
	log        zerolog.Logger
}

// New - view is the gated camera angle, side when empty
func New(inspector Inspector, dispatcher Dispatcher, view render.ViewType, log zerolog.Logger) *Gate {
	if view == "" {
		view = render.ViewSide
	}
	return &Gate{inspector: inspector, dispatcher: dispatcher, view: view, log: log}
}

// Applies reports whether a settled view of this mode goes through the gate.
func (g *Gate) Applies(mode render.Mode, view render.ViewType) bool {
	return mode == render.ModeGradient && view == g.view
}

// View - the gated camera angle
func (g *Gate) View() render.ViewType {
	return g.view
}

// Inspect scores a finished render.
func (g *Gate) Inspect(ctx context.Context, job render.ViewJob) (render.QualityVerdict, error) {
	if !job.Succeeded() {
		return render.QualityVerdict{}, fmt.Errorf("cannot inspect %s view in state %s", job.View, job.State)
	}
	verdict, err := g.inspector.Inspect(ctx, job.URL, job.RenderID)
	if err != nil {
		return render.QualityVerdict{}, fmt.Errorf("inspection of %s view failed: %w", job.View, err)
	}
	return verdict, nil
}

// NeedsRegeneration - defective verdict with attempts left
func NeedsRegeneration(verdict render.QualityVerdict, attempt int) bool {
	defective := verdict.Score <= LowQualityThreshold || verdict.HasHardLine
	return defective && attempt < MaxAttempts
}

// MaybeRegenerate redispatches job when the verdict calls for it. It returns
// the replacement and true only when the regeneration succeeded; otherwise
// the original job is returned unchanged.
func (g *Gate) MaybeRegenerate(
	ctx context.Context,
	job render.ViewJob,
	base render.GenerationRequest,
	verdict render.QualityVerdict,
	attempt int,
) (render.ViewJob, bool) {
	if !NeedsRegeneration(verdict, attempt) {
		outcome := "clean"
		if verdict.Score <= LowQualityThreshold || verdict.HasHardLine {
			outcome = "capped"
		}
		metrics.QualityRegenerations.WithLabelValues(outcome).Inc()
		return job, false
	}

	next := attempt + 1
	req := base.WithView(job.View)
	req.RevisionPrompt = Instruction(base.RevisionPrompt, verdict, next)
	req.PreviousRenderURL = job.URL
	req.BypassCache = true

	g.log.Info().
		Str("view", string(job.View)).
		Int("score", verdict.Score).
		Bool("hardLine", verdict.HasHardLine).
		Msgf("🔁 [Quality Gate] Regenerating (attempt %d/%d)", next, MaxAttempts)

	regenerated := g.dispatcher.Dispatch(ctx, req, next)
	if !regenerated.Succeeded() {
		g.log.Warn().Err(regenerated.Err).Str("view", string(job.View)).Msg("⚠️  [Quality Gate] Regeneration failed, keeping original")
		metrics.QualityRegenerations.WithLabelValues("regeneration_failed").Inc()
		return job, false
	}

	metrics.QualityRegenerations.WithLabelValues("regenerated").Inc()
	return regenerated, true
}

// Run inspects job and regenerates it at most once more. The second
// inspection is informational only; the hard cap stops any further retry.
func (g *Gate) Run(ctx context.Context, job render.ViewJob, base render.GenerationRequest) (render.ViewJob, bool) {
	attempt := job.Attempt
	if tagged := ParseAttempt(base.RevisionPrompt); tagged > attempt {
		attempt = tagged
	}

	verdict, err := g.Inspect(ctx, job)
	if err != nil {
		g.log.Warn().Err(err).Msg("⚠️  [Quality Gate] Inspection failed, keeping render")
		metrics.QualityRegenerations.WithLabelValues("inspect_failed").Inc()
		return job, false
	}

	regenerated, ok := g.MaybeRegenerate(ctx, job, base, verdict, attempt)
	if !ok {
		return job, false
	}

	if after, err := g.Inspect(ctx, regenerated); err != nil {
		g.log.Warn().Err(err).Msg("⚠️  [Quality Gate] Re-inspection failed")
	} else {
		g.log.Info().
			Str("view", string(regenerated.View)).
			Int("score", after.Score).
			Bool("hardLine", after.HasHardLine).
			Msg("🔍 [Quality Gate] Regenerated render inspected")
	}
	return regenerated, true
}
