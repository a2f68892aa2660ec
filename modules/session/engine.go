package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"wrap-render-server/modules/common/metrics"
	"wrap-render-server/modules/notifier"
	"wrap-render-server/modules/render"
	"wrap-render-server/modules/renderset"
	"wrap-render-server/modules/resolver"
)

const defaultRegistrySize = 1024

// QuotaGuard is satisfied by *quota.Guard.
type QuotaGuard interface {
	CanConsume(ctx context.Context, customerID string) (bool, error)
	RecordConsumption(ctx context.Context, customerID string)
}

// ViewScheduler is satisfied by *scheduler.Scheduler.
type ViewScheduler interface {
	GenerateHero(ctx context.Context, req render.GenerationRequest) render.ViewJob
	GenerateViews(ctx context.Context, reqs []render.GenerationRequest, onSettle func(render.ViewJob)) []render.ViewJob
}

// QualityGate is satisfied by *qualitygate.Gate.
type QualityGate interface {
	Applies(mode render.Mode, view render.ViewType) bool
	Run(ctx context.Context, job render.ViewJob, base render.GenerationRequest) (render.ViewJob, bool)
}

// ContinuityCache is satisfied by *continuity.Cache.
type ContinuityCache interface {
	Save(ctx context.Context, scope string, mode render.Mode, rs *renderset.RenderSet) error
	Load(ctx context.Context, scope string, mode render.Mode) (*renderset.RenderSet, error)
	Clear(ctx context.Context, scope string, mode render.Mode) error
}

// Deps wires the engine. Gate and Cache are optional.
type Deps struct {
	Quota     QuotaGuard
	Scheduler ViewScheduler
	Gate      QualityGate
	Cache     ContinuityCache
	Notifier  notifier.Notifier

	// RegistrySize bounds how many sessions stay queryable
	RegistrySize int
}

// Input - one "generate" action from the designer
type Input struct {
	SessionID      string
	CustomerID     string
	Scope          string
	Vehicle        render.VehicleIdentity
	Selection      render.FinishSelection
	Mode           render.Mode
	Views          []render.ViewType
	RevisionPrompt string
	BypassCache    bool
	// NewDesign clears the continuity entry before generating
	NewDesign bool
}

// Engine runs design sessions: hero first, then the remaining views in the
// background, with quota, quality and continuity applied along the way.
type Engine struct {
	quota     QuotaGuard
	scheduler ViewScheduler
	gate      QualityGate
	cache     ContinuityCache
	notifier  notifier.Notifier
	sessions  *lru.Cache
	log       zerolog.Logger

	// owners maps scope+mode to the newest session id; only that session
	// may write the continuity entry.
	saveMu sync.Mutex
	owners *lru.Cache
}

func NewEngine(deps Deps, log zerolog.Logger) (*Engine, error) {
	size := deps.RegistrySize
	if size <= 0 {
		size = defaultRegistrySize
	}
	sessions, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	owners, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	n := deps.Notifier
	if n == nil {
		n = notifier.Nop{}
	}

	return &Engine{
		quota:     deps.Quota,
		scheduler: deps.Scheduler,
		gate:      deps.Gate,
		cache:     deps.Cache,
		notifier:  n,
		sessions:  sessions,
		owners:    owners,
		log:       log,
	}, nil
}

// Session looks up a running or recently settled session.
func (e *Engine) Session(id string) (*Session, bool) {
	v, ok := e.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Start validates the input, checks quota and blocks on the hero view. The
// returned session keeps running in the background until every view has
// settled. A nil session means the request was rejected before any work.
func (e *Engine) Start(ctx context.Context, in Input) (*Session, error) {
	id := in.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	log := e.log.With().Str("session", id).Str("mode", string(in.Mode)).Logger()

	views := planViews(in.Views)
	reqs := make([]render.GenerationRequest, 0, len(views))
	for _, v := range views {
		req, err := resolver.Resolve(in.Selection, in.Vehicle, in.Mode, v, in.RevisionPrompt)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️  [Session] Request rejected")
			e.reject(id, in.Mode, "rejected", err)
			return nil, err
		}
		req.CustomerID = in.CustomerID
		req.BypassCache = in.BypassCache
		reqs = append(reqs, req)
	}

	if e.quota != nil {
		if allowed, err := e.quota.CanConsume(ctx, in.CustomerID); !allowed {
			if err == nil {
				err = render.ErrQuotaDenied
			}
			log.Info().Err(err).Str("customer", in.CustomerID).Msg("🚫 [Session] Quota denied")
			e.reject(id, in.Mode, "quota_denied", err)
			return nil, err
		}
	}

	scope := ScopeFor(in.Scope, in.CustomerID, id)

	s := newSession(id, in.CustomerID, scope, in.Mode)
	e.sessions.Add(id, s)

	// detached so an abandoned request cannot cancel background views
	bg := context.WithoutCancel(ctx)

	if in.RevisionPrompt != "" && !in.NewDesign {
		e.attachPrevious(bg, scope, in.Mode, reqs)
	}
	e.claim(bg, s, in.NewDesign)

	e.advance(s, StateHeroInFlight)
	e.progress(s)

	hero := e.scheduler.GenerateHero(ctx, reqs[0])
	s.settleView(hero)

	if !hero.Succeeded() {
		log.Error().Err(hero.Err).Msg("❌ [Session] Hero view failed")
		e.notify(id, notifier.FromError(hero.Err))
		e.conclude(s, "hero_failed")
		return s, hero.Err
	}

	if e.quota != nil {
		e.quota.RecordConsumption(bg, in.CustomerID)
	}
	e.notify(id, notifier.Success(hero.View.Label()))
	e.save(bg, s)

	rest := reqs[1:]
	if len(rest) == 0 {
		e.settle(bg, s)
		return s, nil
	}

	pending := make([]render.ViewType, len(rest))
	for i := range rest {
		rest[i].SkipLookups = true
		pending[i] = rest[i].View
	}
	s.setPending(pending)
	e.advance(s, StateViewsInFlight)
	e.progress(s)

	log.Info().Int("views", len(rest)).Msg("🚀 [Session] Hero ready, dispatching remaining views")
	go e.runViews(bg, s, rest)

	return s, nil
}

func (e *Engine) runViews(ctx context.Context, s *Session, reqs []render.GenerationRequest) {
	var gated sync.WaitGroup

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("session", s.ID).Msg("❌ [Session] Background views panicked")
		}
		gated.Wait()
		e.settle(ctx, s)
	}()

	base := make(map[render.ViewType]render.GenerationRequest, len(reqs))
	for _, req := range reqs {
		base[req.View] = req
	}

	e.scheduler.GenerateViews(ctx, reqs, func(job render.ViewJob) {
		s.settleView(job)
		e.progress(s)

		if job.Succeeded() && e.gate != nil && e.gate.Applies(s.Mode, job.View) {
			gated.Add(1)
			go func() {
				defer gated.Done()
				e.inspect(ctx, s, job, base[job.View])
			}()
		}
	})
}

// inspect runs the quality gate off the settle path so siblings keep merging.
func (e *Engine) inspect(ctx context.Context, s *Session, job render.ViewJob, base render.GenerationRequest) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("session", s.ID).Msg("❌ [Session] Quality gate panicked")
		}
	}()

	improved, replaced := e.gate.Run(ctx, job, base)
	if !replaced {
		return
	}
	s.override(improved.View, improved.URL)
	e.log.Info().Str("session", s.ID).Str("view", string(improved.View)).Msg("✨ [Session] Replaced view with regenerated render")
	e.progress(s)
	e.save(ctx, s)
}

// settle ends a session whose hero succeeded.
func (e *Engine) settle(ctx context.Context, s *Session) {
	e.save(ctx, s)

	outcome := "complete"
	if failed := s.Failed(); len(failed) > 0 {
		outcome = "partial"
		e.notify(s.ID, notifier.Partial(failed))
	}
	e.conclude(s, outcome)
}

func (e *Engine) conclude(s *Session, outcome string) {
	e.advance(s, StateSettled)
	e.progress(s)
	metrics.SessionsTotal.WithLabelValues(string(s.Mode), outcome).Inc()
	e.log.Info().Str("session", s.ID).Str("outcome", outcome).Int("views", s.set.Len()).Msg("🏁 [Session] Settled")
	s.close()
}

func (e *Engine) reject(id string, mode render.Mode, outcome string, err error) {
	e.notify(id, notifier.FromError(err))
	metrics.SessionsTotal.WithLabelValues(string(mode), outcome).Inc()
}

func (e *Engine) advance(s *Session, next State) {
	if err := s.transition(next); err != nil {
		e.log.Error().Err(err).Msg("❌ [Session] State transition refused")
	}
}

// claim makes s the continuity owner of its scope and mode. Results of any
// older session on the same key are no longer saved.
func (e *Engine) claim(ctx context.Context, s *Session, clear bool) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.owners.Add(ownerKey(s.Scope, s.Mode), s.ID)
	if clear && e.cache != nil {
		if err := e.cache.Clear(ctx, s.Scope, s.Mode); err != nil {
			e.log.Warn().Err(err).Str("session", s.ID).Msg("⚠️  [Session] Failed to clear continuity")
		}
	}
}

func (e *Engine) owns(s *Session) bool {
	owner, ok := e.owners.Get(ownerKey(s.Scope, s.Mode))
	return ok && owner.(string) == s.ID
}

func (e *Engine) save(ctx context.Context, s *Session) {
	if e.cache == nil {
		return
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	if !e.owns(s) {
		e.log.Info().Str("session", s.ID).Msg("⏭️  [Session] Superseded by a newer session, continuity not saved")
		return
	}
	if err := e.cache.Save(ctx, s.Scope, s.Mode, s.RenderSet()); err != nil {
		e.log.Warn().Err(err).Str("session", s.ID).Msg("⚠️  [Session] Failed to save continuity")
	}
}

// attachPrevious points each revision request at the render it revises.
func (e *Engine) attachPrevious(ctx context.Context, scope string, mode render.Mode, reqs []render.GenerationRequest) {
	if e.cache == nil {
		return
	}
	prev, err := e.cache.Load(ctx, scope, mode)
	if err != nil || prev == nil {
		return
	}
	for i := range reqs {
		reqs[i].PreviousRenderURL = prev.URL(reqs[i].View)
	}
}

// ScopeFor - continuity scope of a design: explicit scope, else the
// customer, else the session itself.
func ScopeFor(scope, customerID, sessionID string) string {
	if scope != "" {
		return scope
	}
	if customerID != "" {
		return customerID
	}
	return sessionID
}

func ownerKey(scope string, mode render.Mode) string {
	return scope + "|" + string(mode)
}

// notify and progress must never take a session down with them.
func (e *Engine) notify(sessionID string, n notifier.Notification) {
	defer e.recoverNotifier(sessionID)
	e.notifier.Notify(sessionID, n)
}

func (e *Engine) progress(s *Session) {
	defer e.recoverNotifier(s.ID)
	snap := s.Snapshot()
	e.notifier.Progress(s.ID, notifier.Progress{
		State:   string(snap.State),
		Views:   snap.Views,
		Pending: snap.Pending,
		Failed:  snap.Failed,
		At:      time.Now(),
	})
}

func (e *Engine) recoverNotifier(sessionID string) {
	if r := recover(); r != nil {
		e.log.Error().Interface("panic", r).Str("session", sessionID).Msg("❌ [Session] Notifier panicked")
	}
}

// planViews puts the hero first and drops duplicates. An empty list means the
// default set.
func planViews(views []render.ViewType) []render.ViewType {
	if len(views) == 0 {
		views = render.DefaultViews
	}

	out := []render.ViewType{render.ViewHero}
	seen := map[render.ViewType]bool{render.ViewHero: true}
	for _, v := range views {
		if v == "" {
			v = render.ViewHero
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
