package design

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"wrap-render-server/modules/render"
	"wrap-render-server/modules/renderset"
	"wrap-render-server/modules/session"
)

// Engine is satisfied by *session.Engine.
type Engine interface {
	Start(ctx context.Context, in session.Input) (*session.Session, error)
	Session(id string) (*session.Session, bool)
}

// Continuity is satisfied by *continuity.Cache.
type Continuity interface {
	LoadWithTime(ctx context.Context, scope string, mode render.Mode) (*renderset.RenderSet, time.Time, error)
	Clear(ctx context.Context, scope string, mode render.Mode) error
}

// QuotaReader is satisfied by *quota.Guard.
type QuotaReader interface {
	State(ctx context.Context, customerID string) (*render.QuotaState, error)
}

type Handler struct {
	engine     Engine
	continuity Continuity
	quota      QuotaReader
	log        zerolog.Logger
}

// NewHandler - continuity and quota may be nil; their routes then answer 503
func NewHandler(engine Engine, continuity Continuity, quota QuotaReader, log zerolog.Logger) *Handler {
	return &Handler{engine: engine, continuity: continuity, quota: quota, log: log}
}

// RegisterRoutes - mount the design endpoints
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/design/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/design/sessions/{sessionId}", h.HandleSession).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/design/continuity/{mode}", h.HandleLoadContinuity).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/design/continuity/{mode}", h.HandleClearContinuity).Methods("DELETE")
	r.HandleFunc("/api/design/quota", h.HandleQuota).Methods("GET", "OPTIONS")
	h.log.Info().Msg("✅ [Design] Routes registered")
}

// HandleGenerate - POST /api/design/generate[?wait=true]
// Blocks on the hero view. With wait=true it also waits for the remaining views.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn().Err(err).Msg("❌ [Design] Invalid request")
		writeJSON(w, http.StatusBadRequest, Response{
			ErrorCode:    render.CodeInvalidRequest,
			ErrorMessage: "Invalid request format",
		})
		return
	}

	in, err := req.Input()
	if err != nil {
		writeError(w, err)
		return
	}

	h.log.Info().
		Str("mode", string(in.Mode)).
		Str("vehicle", in.Vehicle.String()).
		Str("customer", in.CustomerID).
		Msg("🔄 [Design] Processing generate request")

	s, err := h.engine.Start(r.Context(), in)
	if s == nil {
		writeError(w, err)
		return
	}

	if err == nil && r.URL.Query().Get("wait") == "true" {
		if waitErr := s.WaitContext(r.Context()); waitErr != nil {
			h.log.Warn().Err(waitErr).Str("session", s.ID).Msg("⚠️  [Design] Client left before the session settled")
		}
	}

	snap := s.Snapshot()
	if err != nil {
		code := render.Classify(err)
		writeJSON(w, StatusFor(code), Response{
			ErrorCode:    code,
			ErrorMessage: err.Error(),
			Session:      &snap,
		})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Session: &snap})
}

// HandleSession - GET /api/design/sessions/{sessionId}
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s, ok := h.engine.Session(mux.Vars(r)["sessionId"])
	if !ok {
		writeJSON(w, http.StatusNotFound, Response{ErrorCode: "NOT_FOUND", ErrorMessage: "Session not found"})
		return
	}
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, Response{Success: true, Session: &snap})
}

// continuityScope resolves the cache scope from the query the same way the
// engine does when it saves.
func continuityScope(r *http.Request) (string, bool) {
	q := r.URL.Query()
	scope := session.ScopeFor(q.Get("scope"), q.Get("customerId"), q.Get("sessionId"))
	return scope, scope != ""
}

// HandleLoadContinuity - GET /api/design/continuity/{mode}?scope=|customerId=|sessionId=
func (h *Handler) HandleLoadContinuity(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if h.continuity == nil {
		writeUnavailable(w)
		return
	}

	mode := render.Mode(mux.Vars(r)["mode"])
	if !mode.Valid() {
		writeError(w, render.NewValidationError("modeType", "unknown mode "+string(mode)))
		return
	}

	scope, ok := continuityScope(r)
	if !ok {
		writeError(w, render.NewValidationError("scope", "scope, customerId or sessionId is required"))
		return
	}

	rs, savedAt, err := h.continuity.LoadWithTime(r.Context(), scope, mode)
	if err != nil {
		// the set is still usable, an empty one
		h.log.Warn().Err(err).Str("mode", string(mode)).Msg("⚠️  [Design] Continuity load failed")
	}

	resp := Response{Success: true, Views: rs.Entries()}
	if !savedAt.IsZero() {
		resp.SavedAt = &savedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleClearContinuity - DELETE /api/design/continuity/{mode}?scope=|customerId=|sessionId=
func (h *Handler) HandleClearContinuity(w http.ResponseWriter, r *http.Request) {
	if h.continuity == nil {
		writeUnavailable(w)
		return
	}

	mode := render.Mode(mux.Vars(r)["mode"])
	if !mode.Valid() {
		writeError(w, render.NewValidationError("modeType", "unknown mode "+string(mode)))
		return
	}

	scope, ok := continuityScope(r)
	if !ok {
		writeError(w, render.NewValidationError("scope", "scope, customerId or sessionId is required"))
		return
	}

	if err := h.continuity.Clear(r.Context(), scope, mode); err != nil {
		h.log.Error().Err(err).Str("mode", string(mode)).Msg("❌ [Design] Continuity clear failed")
		writeJSON(w, http.StatusInternalServerError, Response{ErrorCode: render.CodeInternal, ErrorMessage: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

// HandleQuota - GET /api/design/quota?customerId=
func (h *Handler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if h.quota == nil {
		writeUnavailable(w)
		return
	}

	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		writeError(w, render.NewValidationError("customerId", "is required"))
		return
	}

	state, err := h.quota.State(r.Context(), customerID)
	if err != nil {
		h.log.Error().Err(err).Str("customer", customerID).Msg("❌ [Design] Quota lookup failed")
		writeJSON(w, http.StatusInternalServerError, Response{ErrorCode: render.CodeInternal, ErrorMessage: "Failed to load quota"})
		return
	}
	if state == nil {
		writeJSON(w, http.StatusNotFound, Response{ErrorCode: "NOT_FOUND", ErrorMessage: "No quota record"})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Quota: &QuotaView{QuotaState: *state, Remaining: state.Remaining()}})
}

func writeError(w http.ResponseWriter, err error) {
	code := render.Classify(err)
	writeJSON(w, StatusFor(code), Response{ErrorCode: code, ErrorMessage: err.Error()})
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, Response{ErrorCode: render.CodeInternal, ErrorMessage: "Service unavailable"})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
