package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FlowName identifies a conversational flow preset.
type FlowName string

const (
	FlowInterviewScheduling FlowName = "interview_scheduling"
	FlowStandardSupport     FlowName = "standard_support"
	FlowReactivation        FlowName = "reactivation"
	FlowGeneral             FlowName = "general"
)

// Stage is a position within a flow's state machine.
type Stage string

const (
	StageGreeting       Stage = "greeting"
	StageTimePreference Stage = "time_preference"
	StageSlotsOffered   Stage = "slots_offered"
	StageSlotSelection  Stage = "slot_selection"
	StageConfirmed      Stage = "confirmed"
)

// TimePreference is a candidate's requested period of day.
type TimePreference string

const (
	PreferNone      TimePreference = "none"
	PreferMorning   TimePreference = "morning"
	PreferAfternoon TimePreference = "afternoon"
)

// SlotRef describes one interview slot as presented to a candidate.
// Date is midnight UTC of the slot's day; Time is "HH:MM" 24-hour.
type SlotRef struct {
	Date  time.Time `json:"date"`
	Time  string    `json:"time"`
	Label string    `json:"label"`
}

// Weekday returns the slot's day of week.
func (s SlotRef) Weekday() time.Weekday { return s.Date.Weekday() }

// Hour returns the slot's starting hour, or -1 if Time is malformed.
func (s SlotRef) Hour() int {
	if len(s.Time) < 2 {
		return -1
	}
	h, err := strconv.Atoi(s.Time[:2])
	if err != nil {
		return -1
	}
	return h
}

// SchedulingContext is the flow-specific payload carried inside a
// conversation state row.
type SchedulingContext struct {
	SelectionAttempts int        `json:"selection_attempts,omitempty"`
	RequestedDay      string     `json:"requested_day,omitempty"`
	OfferRound        int        `json:"offer_round,omitempty"`
	EscalatedAt       *time.Time `json:"escalated_at,omitempty"`
}

// ConversationState is the persisted, per-candidate dialogue session.
// At most one live (non-expired) row exists per candidate; a read after
// ExpiresAt is treated as absent. Rows are replaced wholesale on save.
type ConversationState struct {
	CandidateID       uuid.UUID         `json:"candidate_id"`
	Flow              FlowName          `json:"flow"`
	Stage             Stage             `json:"stage"`
	TimePreference    TimePreference    `json:"time_preference"`
	ShownSlots        []SlotRef         `json:"shown_slots,omitempty"`
	SelectedSlotIndex *int              `json:"selected_slot_index,omitempty"`
	SchedulingContext SchedulingContext `json:"scheduling_context"`
	LastMessage       string            `json:"last_message"`
	ExpiresAt         time.Time         `json:"expires_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Expired reports whether the state is stale at the given instant.
func (c ConversationState) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
