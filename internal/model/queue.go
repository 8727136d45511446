package model

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the contact state of an interview queue entry.
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueContacted QueueStatus = "contacted"
)

// UrgencyLevel grades queue entries and escalation tickets.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// QueueEntry holds a candidate waiting for an interview booking.
// One row per candidate, replaced on update.
type QueueEntry struct {
	CandidateID    uuid.UUID      `json:"candidate_id"`
	PriorityScore  float64        `json:"priority_score"` // 0..1
	PreferredTimes TimePreference `json:"preferred_times"`
	QueueStatus    QueueStatus    `json:"queue_status"`
	UrgencyLevel   UrgencyLevel   `json:"urgency_level"`
	EnqueuedAt     time.Time      `json:"enqueued_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Escalation trigger types recorded on admin tickets.
const (
	TriggerRescheduleWithin24h = "RESCHEDULE_WITHIN_24H"
	TriggerRescheduleRequest   = "RESCHEDULE_REQUEST"
	TriggerSelectionExhausted  = "SELECTION_RETRY_EXHAUSTED"
)

// EscalationTicket is the payload sent to the external admin-escalation
// service and fanned out on the escalations notify channel.
type EscalationTicket struct {
	ID          uuid.UUID      `json:"id"`
	CandidateID uuid.UUID      `json:"candidate_id"`
	Urgency     UrgencyLevel   `json:"urgency"`
	TriggerType string         `json:"trigger_type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
