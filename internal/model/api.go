package model

import (
	"time"

	"github.com/google/uuid"
)

// Response types emitted by the dialogue manager. The transport layer keys
// templated rendering off these, so they are part of the wire contract.
const (
	ResponseGreeting          = "greeting"
	ResponseAskTimePreference = "ask_time_preference"
	ResponseSlotsOffer        = "slots_offer"
	ResponseBookingConfirmed  = "booking_confirmed"
	ResponseSlotUnavailable   = "slot_unavailable"
	ResponseSelectionRetry    = "selection_retry"
	ResponseEscalationHandoff = "escalation_handoff"
	ResponseSupportAck        = "support_ack"
	ResponseReactivationInfo  = "reactivation_info"
	ResponseAllSet            = "all_set"
	ResponseNotFound          = "not_found"
	ResponseSystemError       = "system_error"
)

// ResponseScheduling is the scheduling context attached to a response payload.
type ResponseScheduling struct {
	Stage          Stage     `json:"stage"`
	Priority       string    `json:"priority"`
	SelectedSlot   *SlotRef  `json:"selected_slot,omitempty"`
	AvailableSlots []SlotRef `json:"available_slots,omitempty"`
}

// ResponsePayload is the turn result consumed by the chat-delivery collaborator.
type ResponsePayload struct {
	Type              string              `json:"type"`
	Content           string              `json:"content"`
	Metadata          map[string]any      `json:"metadata,omitempty"`
	SchedulingContext *ResponseScheduling `json:"scheduling_context,omitempty"`
	QuickReplies      []string            `json:"quick_replies,omitempty"`
}

// TransportContext carries optional transport-supplied hints. Never
// authoritative over persisted conversation state.
type TransportContext struct {
	Channel      string `json:"channel,omitempty"`
	MessageIndex int    `json:"message_index,omitempty"`
}

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	CandidateID uuid.UUID         `json:"candidate_id"`
	Message     string            `json:"message"`
	Context     *TransportContext `json:"context,omitempty"`
}

// TransitionRequest is the body of POST /v1/candidates/{id}/transitions.
type TransitionRequest struct {
	ToStatus  WorkerStatus `json:"to_status"`
	ChangedBy string       `json:"changed_by"`
	Reason    string       `json:"reason"`
}

// HealthChecks reports per-subsystem health.
type HealthChecks struct {
	Database         string `json:"database"`
	SchedulingEngine string `json:"scheduling_engine"`
	SlotAvailability string `json:"slot_availability"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string       `json:"status"` // healthy | unhealthy
	Version        string       `json:"version"`
	Checks         HealthChecks `json:"checks"`
	AvailableSlots int          `json:"available_slots"`
	Uptime         int64        `json:"uptime_seconds"`
}

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every API response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes used in APIError.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)
