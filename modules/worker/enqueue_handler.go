package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"wrap-render-server/modules/design"
	"wrap-render-server/modules/render"
)

// EnqueueHandler - queues generate requests for the worker
type EnqueueHandler struct {
	queue Queue
	log   zerolog.Logger
}

// EnqueueResponse - body of POST /api/design/enqueue
type EnqueueResponse struct {
	Success       bool   `json:"success"`
	ErrorCode     string `json:"errorCode,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	JobID         string `json:"jobId,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	Queue         string `json:"queue,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
}

func NewEnqueueHandler(queue Queue, log zerolog.Logger) *EnqueueHandler {
	return &EnqueueHandler{queue: queue, log: log}
}

// RegisterRoutes - POST /api/design/enqueue
func (h *EnqueueHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/design/enqueue", h.HandleEnqueue).Methods("POST", "OPTIONS")
	h.log.Info().Msg("✅ [Enqueue] Routes registered: /api/design/enqueue")
}

func (h *EnqueueHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req design.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn().Err(err).Msg("❌ [Enqueue] Invalid request")
		writeEnqueue(w, http.StatusBadRequest, EnqueueResponse{
			ErrorCode:    render.CodeInvalidRequest,
			ErrorMessage: "Invalid request body",
		})
		return
	}
	if _, err := req.Input(); err != nil {
		writeEnqueue(w, http.StatusBadRequest, EnqueueResponse{
			ErrorCode:    render.CodeInvalidRequest,
			ErrorMessage: err.Error(),
		})
		return
	}

	job := Job{JobID: uuid.NewString(), Request: req, EnqueuedAt: time.Now()}
	if job.Request.SessionID == "" {
		job.Request.SessionID = job.JobID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	position, err := h.queue.Enqueue(ctx, job)
	if err != nil {
		h.log.Error().Err(err).Msg("❌ [Enqueue] Push failed")
		writeEnqueue(w, http.StatusInternalServerError, EnqueueResponse{
			ErrorCode:    render.CodeInternal,
			ErrorMessage: "Failed to enqueue job",
		})
		return
	}

	h.log.Info().Str("job", job.JobID).Int64("position", position).Msg("✅ [Enqueue] Job enqueued")

	writeEnqueue(w, http.StatusAccepted, EnqueueResponse{
		Success:       true,
		JobID:         job.JobID,
		SessionID:     job.Request.SessionID,
		Queue:         QueueName,
		QueuePosition: position,
	})
}

func writeEnqueue(w http.ResponseWriter, status int, body EnqueueResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
