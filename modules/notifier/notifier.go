package notifier

import (
	"errors"
	"strings"
	"sync"
	"time"

	"wrap-render-server/modules/render"
	"wrap-render-server/modules/renderset"
)

// Kind - toast category shown by the UI
type Kind string

const (
	KindSuccess      Kind = "success"
	KindError        Kind = "error"
	KindAuthRequired Kind = "auth_required"
	KindQuotaDenied  Kind = "quota_denied"
	KindValidation   Kind = "validation"
	KindPartial      Kind = "partial"
)

// Notification - one terminal user facing message
type Notification struct {
	Kind       Kind              `json:"kind"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	ErrorCode  string            `json:"errorCode,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
	Incomplete []render.ViewType `json:"incompleteViews,omitempty"`
	At         time.Time         `json:"at"`
}

// Progress - incremental state for rendering partial results
type Progress struct {
	State   string            `json:"state"`
	Views   []renderset.Entry `json:"views"`
	Pending []render.ViewType `json:"pendingViews"`
	Failed  []render.ViewType `json:"failedViews,omitempty"`
	At      time.Time         `json:"at"`
}

// Notifier receives session outcomes. Implementations must not block.
type Notifier interface {
	Notify(sessionID string, n Notification)
	Progress(sessionID string, p Progress)
}

// Success - hero view is ready
func Success(label string) Notification {
	return Notification{
		Kind:    KindSuccess,
		Title:   "Render ready",
		Message: label + " is ready. Remaining views are on the way.",
		At:      time.Now(),
	}
}

// Partial - some views did not complete
func Partial(missing []render.ViewType) Notification {
	labels := make([]string, len(missing))
	for i, v := range missing {
		labels[i] = v.Label()
	}
	return Notification{
		Kind:       KindPartial,
		Title:      "Some views didn't complete",
		Message:    strings.Join(labels, ", ") + " could not be generated.",
		Retryable:  true,
		Incomplete: missing,
		At:         time.Now(),
	}
}

// FromError maps a terminal failure onto its user facing notification.
func FromError(err error) Notification {
	n := Notification{ErrorCode: render.Classify(err), At: time.Now()}

	switch n.ErrorCode {
	case render.CodeInvalidRequest:
		n.Kind = KindValidation
		n.Title = "Check your selection"
		var verr *render.ValidationError
		if errors.As(err, &verr) {
			n.Message = verr.Error()
		} else {
			n.Message = err.Error()
		}
	case render.CodeQuotaExceeded:
		n.Kind = KindQuotaDenied
		n.Title = "Render limit reached"
		n.Message = "Upgrade your plan to keep generating renders."
	case render.CodeAuthRequired:
		n.Kind = KindAuthRequired
		n.Title = "Please sign in"
		n.Message = "Your session expired. Sign in again to continue."
	default:
		n.Kind = KindError
		n.Title = "Render failed"
		n.Message = "We couldn't generate this render. Please try again."
		n.Retryable = true
	}
	return n
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(string, Notification) {}
func (Nop) Progress(string, Progress)   {}

// Multi fans out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(sessionID string, n Notification) {
	for _, target := range m {
		target.Notify(sessionID, n)
	}
}

func (m Multi) Progress(sessionID string, p Progress) {
	for _, target := range m {
		target.Progress(sessionID, p)
	}
}

// Recorder keeps everything in memory. Used by tests and session snapshots.
type Recorder struct {
	mu            sync.Mutex
	notifications map[string][]Notification
	progress      map[string][]Progress
}

func NewRecorder() *Recorder {
	return &Recorder{
		notifications: make(map[string][]Notification),
		progress:      make(map[string][]Progress),
	}
}

func (r *Recorder) Notify(sessionID string, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[sessionID] = append(r.notifications[sessionID], n)
}

func (r *Recorder) Progress(sessionID string, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[sessionID] = append(r.progress[sessionID], p)
}

// Notifications of a session in arrival order.
func (r *Recorder) Notifications(sessionID string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications[sessionID]...)
}

// Updates - progress reports of a session in arrival order
func (r *Recorder) Updates(sessionID string) []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Progress(nil), r.progress[sessionID]...)
}

// Count of notifications of kind for a session.
func (r *Recorder) Count(sessionID string, kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.notifications[sessionID] {
		if item.Kind == kind {
			n++
		}
	}
	return n
}
