// Package router ties status classification to flow dispatch: every inbound
// message is routed to the conversational flow matching the candidate's
// worker-status tier, and the health surface aggregates subsystem checks.
package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/schedule"
	"github.com/hireloop/hireloop/internal/status"
	"github.com/hireloop/hireloop/internal/storage"
)

// StatusClassifier resolves a candidate's tier, firing auto transitions.
type StatusClassifier interface {
	Classify(ctx context.Context, candidateID uuid.UUID) (status.Classification, error)
}

// TurnProcessor runs one conversational turn under a flow.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, cand model.Candidate, flow model.FlowName, message string) model.ResponsePayload
}

// Pinger checks database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router dispatches messages and serves health checks.
type Router struct {
	statuses StatusClassifier
	turns    TurnProcessor
	db       Pinger
	engine   *schedule.Engine
	logger   *slog.Logger

	windowDays int
	version    string
	started    time.Time
	now        func() time.Time
}

// New creates a Router.
func New(statuses StatusClassifier, turns TurnProcessor, db Pinger, engine *schedule.Engine, windowDays int, version string, logger *slog.Logger) *Router {
	if windowDays <= 0 {
		windowDays = 14
	}
	return &Router{
		statuses:   statuses,
		turns:      turns,
		db:         db,
		engine:     engine,
		logger:     logger,
		windowDays: windowDays,
		version:    version,
		started:    time.Now(),
		now:        time.Now,
	}
}

// HandleMessage classifies the sender and runs the turn under the tier's
// flow. An unknown candidate gets a contact-support reply; a classification
// failure other than not-found degrades to the pending-tier flow rather than
// dropping the message.
func (r *Router) HandleMessage(ctx context.Context, req model.MessageRequest) model.ResponsePayload {
	if req.Context != nil {
		r.logger.Debug("inbound message",
			"candidate_id", req.CandidateID,
			"channel", req.Context.Channel,
			"message_index", req.Context.MessageIndex)
	}

	cls, err := r.statuses.Classify(ctx, req.CandidateID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return model.ResponsePayload{
			Type:    model.ResponseNotFound,
			Content: "We couldn't find your profile. Please contact support so we can get you set up.",
		}
	case err != nil:
		r.logger.Error("status classification failed, defaulting to pending flow",
			"candidate_id", req.CandidateID, "error", err)
		cls = status.Classification{
			Candidate: model.Candidate{ID: req.CandidateID, WorkerStatus: model.StatusPending},
			Mode:      model.FlowInterviewScheduling,
		}
	}

	return r.turns.ProcessTurn(ctx, cls.Candidate, cls.Mode, req.Message)
}

// PerformHealthCheck fans out the subsystem probes concurrently.
func (r *Router) PerformHealthCheck(ctx context.Context) model.HealthResponse {
	checks := model.HealthChecks{
		Database:         "ok",
		SchedulingEngine: "ok",
		SlotAvailability: "ok",
	}
	var available int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.db.Ping(gctx); err != nil {
			checks.Database = "error: " + err.Error()
		}
		return nil
	})
	g.Go(func() error {
		// Pure computation probe: the engine must always place the next
		// occurrence of a weekday strictly in the future.
		if !schedule.NextWeekday(r.now(), time.Friday).After(r.now()) {
			checks.SchedulingEngine = "error: weekday resolution broken"
		}
		return nil
	})
	g.Go(func() error {
		n, err := r.engine.AvailableCount(gctx, r.windowDays)
		if err != nil {
			checks.SlotAvailability = "error: " + err.Error()
			return nil
		}
		available = n
		if n == 0 {
			checks.SlotAvailability = "empty"
		}
		return nil
	})
	_ = g.Wait()

	// Overall status is binary. Thin or failed slot availability is not a
	// subsystem failure; it stays visible in the checks detail.
	overall := "healthy"
	if checks.Database != "ok" || checks.SchedulingEngine != "ok" {
		overall = "unhealthy"
	}

	return model.HealthResponse{
		Status:         overall,
		Version:        r.version,
		Checks:         checks,
		AvailableSlots: available,
		Uptime:         int64(time.Since(r.started).Seconds()),
	}
}
