// Package model defines the core domain types for Hireloop.
//
// All types correspond directly to database tables and API payloads.
// Types use strong typing (UUIDs, time.Time, enums) and avoid
// interface{} wherever possible.
package model

import (
	"time"

	"github.com/google/uuid"
)

// WorkerStatus classifies a candidate and drives which dialogue flow applies.
type WorkerStatus string

const (
	StatusPending   WorkerStatus = "pending"
	StatusActive    WorkerStatus = "active"
	StatusInactive  WorkerStatus = "inactive"
	StatusSuspended WorkerStatus = "suspended"
)

// Valid reports whether s is a known worker status.
func (s WorkerStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// InterviewStage tracks the candidate's progress through the interview pipeline.
type InterviewStage string

const (
	InterviewNotStarted InterviewStage = "not_started"
	InterviewScheduled  InterviewStage = "scheduled"
	InterviewPassed     InterviewStage = "passed"
	InterviewFailed     InterviewStage = "failed"
)

// Candidate is the scheduling core's view of a candidate record.
// The candidate-management system owns the full record; this core reads it
// and conditionally writes worker_status / interview_stage.
type Candidate struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	WorkerStatus       WorkerStatus   `json:"worker_status"`
	InterviewStage     InterviewStage `json:"interview_stage"`
	TotalJobsCompleted int            `json:"total_jobs_completed"`
	LastSeenAt         *time.Time     `json:"last_seen_at,omitempty"`
	RoutingContext     RoutingContext `json:"routing_context"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// RoutingContext is the cached routing blob refreshed on auto-transitions.
// It lets the transport layer pick a flow without a full classification pass.
type RoutingContext struct {
	Status         WorkerStatus `json:"status,omitempty"`
	Mode           FlowName     `json:"mode,omitempty"`
	AutoScheduling bool         `json:"auto_scheduling,omitempty"`
}

// WorkerStatusChange is an immutable audit row. Created exactly once per
// status change, never mutated or deleted. FromStatus != ToStatus always holds.
type WorkerStatusChange struct {
	ID          uuid.UUID      `json:"id"`
	CandidateID uuid.UUID      `json:"candidate_id"`
	FromStatus  WorkerStatus   `json:"from_status"`
	ToStatus    WorkerStatus   `json:"to_status"`
	ChangedBy   string         `json:"changed_by"`
	Reason      string         `json:"reason"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
