// Package status derives a candidate's worker-status tier and manages the
// audited transition table.
//
// Classification is an ordered predicate table evaluated against a typed
// candidate snapshot: active rules first, then inactive, then the pending
// default. Only transitions flagged autoTrigger execute automatically; all
// others are surfaced as "transition available" for manual action. Every
// executed transition is journaled to worker_status_changes exactly once.
package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hireloop/hireloop/internal/model"
)

// ChangedBySystem marks journal rows written by automatic transitions.
const ChangedBySystem = "system"

// Store is the slice of the storage layer the classifier needs.
type Store interface {
	GetCandidate(ctx context.Context, id uuid.UUID) (model.Candidate, error)
	UpdateCandidateStatus(ctx context.Context, id uuid.UUID, status model.WorkerStatus, routing model.RoutingContext) error
	AppendStatusChange(ctx context.Context, change model.WorkerStatusChange) (model.WorkerStatusChange, error)
}

// Classification is the result of one status evaluation.
type Classification struct {
	Candidate           model.Candidate
	CurrentStatus       model.WorkerStatus
	SuggestedStatus     model.WorkerStatus
	Mode                model.FlowName
	RequiresInterview   bool
	TransitionAvailable bool
	AutoTransitioned    bool
}

// Transition is one entry in the status transition table.
type Transition struct {
	From        model.WorkerStatus
	To          model.WorkerStatus
	AutoTrigger bool
	Reason      string
}

// transitions is keyed by "{from}->{to}". Only pending->active fires
// automatically (on interview pass); everything else needs an admin.
var transitions = map[string]Transition{
	"pending->active":    {From: model.StatusPending, To: model.StatusActive, AutoTrigger: true, Reason: "interview passed"},
	"pending->inactive":  {From: model.StatusPending, To: model.StatusInactive, Reason: "withdrawn before interview"},
	"active->inactive":   {From: model.StatusActive, To: model.StatusInactive, Reason: "deactivated"},
	"active->suspended":  {From: model.StatusActive, To: model.StatusSuspended, Reason: "suspended"},
	"inactive->active":   {From: model.StatusInactive, To: model.StatusActive, Reason: "reactivated"},
	"suspended->active":  {From: model.StatusSuspended, To: model.StatusActive, Reason: "suspension lifted"},
	"suspended->inactive": {From: model.StatusSuspended, To: model.StatusInactive, Reason: "suspension expired"},
}

func transitionKey(from, to model.WorkerStatus) string {
	return string(from) + "->" + string(to)
}

// rule is one (name, predicate) pair in a tier's ordered rule set.
type rule struct {
	name    string
	matches func(model.Candidate) bool
}

var activeRules = []rule{
	{"interview_passed", func(c model.Candidate) bool {
		return c.InterviewStage == model.InterviewPassed
	}},
	{"active_with_completed_jobs", func(c model.Candidate) bool {
		return c.WorkerStatus == model.StatusActive && c.TotalJobsCompleted >= 1
	}},
}

var inactiveRules = []rule{
	{"marked_inactive", func(c model.Candidate) bool {
		return c.WorkerStatus == model.StatusInactive
	}},
	{"suspended", func(c model.Candidate) bool {
		return c.WorkerStatus == model.StatusSuspended
	}},
}

// modeFor maps a status tier to its flow preset.
func modeFor(status model.WorkerStatus) model.FlowName {
	switch status {
	case model.StatusActive:
		return model.FlowStandardSupport
	case model.StatusInactive, model.StatusSuspended:
		return model.FlowReactivation
	default:
		return model.FlowInterviewScheduling
	}
}

// Classifier evaluates the rule sets and executes auto transitions.
type Classifier struct {
	store  Store
	logger *slog.Logger
}

// New creates a Classifier.
func New(store Store, logger *slog.Logger) *Classifier {
	return &Classifier{store: store, logger: logger}
}

// Derive evaluates the rule sets against a candidate snapshot without any
// side effects. Never returns a status outside {pending, active, inactive}.
func Derive(c model.Candidate) model.WorkerStatus {
	for _, r := range activeRules {
		if r.matches(c) {
			return model.StatusActive
		}
	}
	for _, r := range inactiveRules {
		if r.matches(c) {
			return model.StatusInactive
		}
	}
	return model.StatusPending
}

// Classify loads the candidate, derives the suggested tier, and fires an
// auto transition when the table allows it. A missing candidate is a hard
// error (storage.ErrNotFound passes through); the caller decides any soft
// default for other failure modes.
func (cl *Classifier) Classify(ctx context.Context, candidateID uuid.UUID) (Classification, error) {
	cand, err := cl.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return Classification{}, fmt.Errorf("status: classify %s: %w", candidateID, err)
	}

	suggested := Derive(cand)
	res := Classification{
		Candidate:         cand,
		CurrentStatus:     cand.WorkerStatus,
		SuggestedStatus:   suggested,
		Mode:              modeFor(cand.WorkerStatus),
		RequiresInterview: cand.WorkerStatus == model.StatusPending && cand.InterviewStage != model.InterviewPassed,
	}

	if suggested == cand.WorkerStatus {
		return res, nil
	}

	tr, known := transitions[transitionKey(cand.WorkerStatus, suggested)]
	if !known {
		// No table entry — derived tiers like suspended->inactive stay as-is;
		// the tier still drives flow selection via Mode below.
		res.Mode = modeFor(suggested)
		return res, nil
	}

	if !tr.AutoTrigger {
		res.TransitionAvailable = true
		res.Mode = modeFor(suggested)
		return res, nil
	}

	if err := cl.execute(ctx, cand, tr, ChangedBySystem, tr.Reason, map[string]any{"trigger": "auto"}); err != nil {
		return Classification{}, err
	}

	res.CurrentStatus = tr.To
	res.AutoTransitioned = true
	res.Mode = modeFor(tr.To)
	res.RequiresInterview = false
	res.Candidate.WorkerStatus = tr.To
	return res, nil
}

// ApplyManual executes an admin-requested transition after validating it
// against the table and the candidate's current status.
func (cl *Classifier) ApplyManual(ctx context.Context, candidateID uuid.UUID, to model.WorkerStatus, changedBy, reason string) (model.WorkerStatusChange, error) {
	if !to.Valid() {
		return model.WorkerStatusChange{}, fmt.Errorf("status: unknown target status %q", to)
	}
	cand, err := cl.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return model.WorkerStatusChange{}, fmt.Errorf("status: manual transition %s: %w", candidateID, err)
	}
	tr, known := transitions[transitionKey(cand.WorkerStatus, to)]
	if !known {
		return model.WorkerStatusChange{}, fmt.Errorf("status: no transition %s -> %s", cand.WorkerStatus, to)
	}
	if reason == "" {
		reason = tr.Reason
	}
	if err := cl.execute(ctx, cand, tr, changedBy, reason, map[string]any{"trigger": "manual"}); err != nil {
		return model.WorkerStatusChange{}, err
	}
	return model.WorkerStatusChange{
		CandidateID: cand.ID,
		FromStatus:  tr.From,
		ToStatus:    tr.To,
		ChangedBy:   changedBy,
		Reason:      reason,
	}, nil
}

// execute journals the change and refreshes the candidate's status plus the
// cached routing context. The journal write happens first: an audit row
// without the status write is recoverable, the reverse is not.
func (cl *Classifier) execute(ctx context.Context, cand model.Candidate, tr Transition, changedBy, reason string, meta map[string]any) error {
	if _, err := cl.store.AppendStatusChange(ctx, model.WorkerStatusChange{
		CandidateID: cand.ID,
		FromStatus:  cand.WorkerStatus,
		ToStatus:    tr.To,
		ChangedBy:   changedBy,
		Reason:      reason,
		Metadata:    meta,
	}); err != nil {
		return fmt.Errorf("status: journal transition: %w", err)
	}

	routing := model.RoutingContext{
		Status:         tr.To,
		Mode:           modeFor(tr.To),
		AutoScheduling: tr.To == model.StatusPending,
	}
	if err := cl.store.UpdateCandidateStatus(ctx, cand.ID, tr.To, routing); err != nil {
		return fmt.Errorf("status: apply transition: %w", err)
	}

	cl.logger.Info("worker status transition",
		"candidate_id", cand.ID,
		"from", cand.WorkerStatus,
		"to", tr.To,
		"changed_by", changedBy,
	)
	return nil
}
