package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/hireloop/internal/meeting"
	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/ratelimit"
	"github.com/hireloop/hireloop/internal/status"
	"github.com/hireloop/hireloop/internal/storage"
)

// TurnRouter dispatches inbound messages and serves the health aggregate.
type TurnRouter interface {
	HandleMessage(ctx context.Context, req model.MessageRequest) model.ResponsePayload
	PerformHealthCheck(ctx context.Context) model.HealthResponse
}

// StatusService resolves and transitions candidate worker statuses.
type StatusService interface {
	Classify(ctx context.Context, candidateID uuid.UUID) (status.Classification, error)
	ApplyManual(ctx context.Context, candidateID uuid.UUID, to model.WorkerStatus, changedBy, reason string) (model.WorkerStatusChange, error)
}

// ChangeLister reads the worker-status audit journal.
type ChangeLister interface {
	ListStatusChanges(ctx context.Context, candidateID uuid.UUID, limit int) ([]model.WorkerStatusChange, error)
}

// HandlersDeps wires the request handlers.
type HandlersDeps struct {
	Router   TurnRouter
	Statuses StatusService
	Changes  ChangeLister
	Links    *meeting.LinkSigner
	Limiter  ratelimit.Limiter
	Broker   *Broker

	Version             string
	MaxRequestBodyBytes int64
}

// Handlers carries the dependencies shared by all request handlers.
type Handlers struct {
	router   TurnRouter
	statuses StatusService
	changes  ChangeLister
	links    *meeting.LinkSigner
	limiter  ratelimit.Limiter
	broker   *Broker

	version string
	maxBody int64
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	return &Handlers{
		router:   deps.Router,
		statuses: deps.Statuses,
		changes:  deps.Changes,
		links:    deps.Links,
		limiter:  deps.Limiter,
		broker:   deps.Broker,
		version:  deps.Version,
		maxBody:  deps.MaxRequestBodyBytes,
	}
}

// HandleMessage handles POST /v1/messages.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req model.MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.CandidateID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "candidate_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "message is required")
		return
	}

	if h.limiter != nil {
		ok, err := h.limiter.Allow(r.Context(), "msg:"+req.CandidateID.String())
		if err == nil && !ok {
			writeError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited, "too many messages, slow down")
			return
		}
	}

	payload := h.router.HandleMessage(r.Context(), req)
	writeJSON(w, r, http.StatusOK, payload)
}

// candidateStatusResponse is the body of GET /v1/candidates/{id}/status.
type candidateStatusResponse struct {
	CandidateID         uuid.UUID                  `json:"candidate_id"`
	CurrentStatus       model.WorkerStatus         `json:"current_status"`
	SuggestedStatus     model.WorkerStatus         `json:"suggested_status"`
	Mode                model.FlowName             `json:"mode"`
	RequiresInterview   bool                       `json:"requires_interview"`
	TransitionAvailable bool                       `json:"transition_available"`
	AutoTransitioned    bool                       `json:"auto_transitioned"`
	RecentChanges       []model.WorkerStatusChange `json:"recent_changes"`
}

// HandleCandidateStatus handles GET /v1/candidates/{id}/status.
func (h *Handlers) HandleCandidateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid candidate id")
		return
	}

	cls, err := h.statuses.Classify(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "candidate not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "status classification failed")
		return
	}

	changes, err := h.changes.ListStatusChanges(r.Context(), id, 20)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "status history lookup failed")
		return
	}

	writeJSON(w, r, http.StatusOK, candidateStatusResponse{
		CandidateID:         id,
		CurrentStatus:       cls.CurrentStatus,
		SuggestedStatus:     cls.SuggestedStatus,
		Mode:                cls.Mode,
		RequiresInterview:   cls.RequiresInterview,
		TransitionAvailable: cls.TransitionAvailable,
		AutoTransitioned:    cls.AutoTransitioned,
		RecentChanges:       changes,
	})
}

// HandleTransition handles POST /v1/candidates/{id}/transitions.
func (h *Handlers) HandleTransition(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid candidate id")
		return
	}

	var req model.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.ChangedBy == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "changed_by is required")
		return
	}

	change, err := h.statuses.ApplyManual(r.Context(), id, req.ToStatus, req.ChangedBy, req.Reason)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "candidate not found")
		return
	case errors.Is(err, storage.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, change)
}

// HandleVerifyMeetingLink handles GET /interview/{token}. The signed token
// is the credential; no bearer auth applies here.
func (h *Handlers) HandleVerifyMeetingLink(w http.ResponseWriter, r *http.Request) {
	claims, err := h.links.Verify(r.PathValue("token"))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid or expired meeting link")
		return
	}
	writeJSON(w, r, http.StatusOK, claims)
}

// HandleSubscribe handles GET /v1/escalations/subscribe (SSE).
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError,
			"SSE not available (LISTEN/NOTIFY not configured)")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	// Without this, idle SSE connections are killed after WriteTimeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.router.PerformHealthCheck(r.Context())
	health.Version = h.version

	code := http.StatusOK
	if health.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, health)
}
