package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wrap-render-server/modules/render"
	"wrap-render-server/modules/renderset"
)

// Session is the single owner of one generation's mutable state. Every
// mutation goes through its mutex; readers get copies via Snapshot.
type Session struct {
	ID         string
	CustomerID string
	Scope      string
	Mode       render.Mode

	mu        sync.Mutex
	state     State
	set       *renderset.RenderSet
	pending   []render.ViewType
	failed    []render.ViewType
	errors    map[render.ViewType]string
	startedAt time.Time
	settledAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// Snapshot - read-only copy of a session
type Snapshot struct {
	ID        string            `json:"sessionId"`
	Mode      render.Mode       `json:"modeType"`
	State     State             `json:"state"`
	Views     []renderset.Entry `json:"views"`
	Pending   []render.ViewType `json:"pendingViews"`
	Failed    []render.ViewType `json:"failedViews"`
	Errors    map[string]string `json:"errors,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	SettledAt *time.Time        `json:"settledAt,omitempty"`
}

func newSession(id, customerID, scope string, mode render.Mode) *Session {
	return &Session{
		ID:         id,
		CustomerID: customerID,
		Scope:      scope,
		Mode:       mode,
		state:      StateIdle,
		set:        renderset.New(),
		errors:     make(map[render.ViewType]string),
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
}

func (s *Session) transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransitionTo(next) {
		return fmt.Errorf("session %s: invalid transition %s -> %s", s.ID, s.state, next)
	}
	s.state = next
	if next == StateSettled {
		s.settledAt = time.Now()
	}
	return nil
}

func (s *Session) setPending(views []render.ViewType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append([]render.ViewType(nil), views...)
}

// settleView removes the view from pending and records its outcome.
func (s *Session) settleView(job render.ViewJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range s.pending {
		if v == job.View {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}

	if job.Succeeded() {
		s.set.Merge(job.View, job.URL, renderset.FirstWins)
		return
	}
	s.failed = append(s.failed, job.View)
	if job.Err != nil {
		s.errors[job.View] = job.Err.Error()
	}
}

func (s *Session) override(view render.ViewType, url string) {
	s.set.MergeOverride(view, url)
}

// RenderSet returns a copy of the accumulated views.
func (s *Session) RenderSet() *renderset.RenderSet {
	return s.set.Clone()
}

// State - current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failed views in settle order.
func (s *Session) Failed() []render.ViewType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]render.ViewType(nil), s.failed...)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.ID,
		Mode:      s.Mode,
		State:     s.state,
		Views:     s.set.Entries(),
		Pending:   append([]render.ViewType{}, s.pending...),
		Failed:    append([]render.ViewType{}, s.failed...),
		StartedAt: s.startedAt,
	}
	if len(s.errors) > 0 {
		snap.Errors = make(map[string]string, len(s.errors))
		for v, msg := range s.errors {
			snap.Errors[string(v)] = msg
		}
	}
	if !s.settledAt.IsZero() {
		at := s.settledAt
		snap.SettledAt = &at
	}
	return snap
}

// Done is closed once the session settles.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session settles.
func (s *Session) Wait() {
	<-s.done
}

// WaitContext blocks until the session settles or ctx is done.
func (s *Session) WaitContext(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
