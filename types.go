package hireloop

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Slot is one interview slot as shown to a candidate.
type Slot struct {
	Date  time.Time
	Time  string // "HH:MM" 24-hour
	Label string
}

// Ticket is an escalation handed to a support-desk integration.
type Ticket struct {
	ID          uuid.UUID
	CandidateID uuid.UUID
	Urgency     string // low | medium | high | critical
	TriggerType string
	Title       string
	Description string
	Context     map[string]any
	CreatedAt   time.Time
}

// Confirmation is a booking confirmation for out-of-band delivery.
type Confirmation struct {
	CandidateID   uuid.UUID
	ScheduledDate string // YYYY-MM-DD
	ScheduledTime string // HH:MM
	MeetingLink   string
}

// Escalator receives escalation tickets. Implementations must be safe for
// concurrent use.
type Escalator interface {
	Escalate(ctx context.Context, t Ticket) error
}

// Notifier delivers booking confirmations to candidates.
type Notifier interface {
	Confirm(ctx context.Context, c Confirmation) error
}

// PhraseProvider renders candidate-facing message content. Every method must
// return substantial text; near-empty content is rejected by the response
// quality gate and replaced with a generic error message.
type PhraseProvider interface {
	Greeting(name string) string
	AskTimePreference() string
	SlotsOffer(slots []Slot) string
	BookingConfirmed(slot Slot, link string) string
	SlotUnavailable(slots []Slot) string
	SelectionRetry(slots []Slot) string
	EscalationHandoff() string
	SupportAck() string
	ReactivationInfo() string
	AllSet(slot *Slot) string
	NoAvailability() string
	SystemError() string
}
