package model

import (
	"time"

	"github.com/google/uuid"
)

// SlotStatus is the lifecycle state of a booked interview slot.
type SlotStatus string

const (
	SlotScheduled SlotStatus = "scheduled"
	SlotConfirmed SlotStatus = "confirmed"
	SlotCancelled SlotStatus = "cancelled"
	SlotCompleted SlotStatus = "completed"
)

// InterviewSlot is a booked interview. At most one slot per
// (scheduled_date, scheduled_time) may be scheduled or confirmed
// system-wide; the database enforces this with a partial unique index.
// Slots are never hard-deleted.
type InterviewSlot struct {
	ID            uuid.UUID  `json:"id"`
	CandidateID   uuid.UUID  `json:"candidate_id"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	ScheduledTime string     `json:"scheduled_time"`
	Status        SlotStatus `json:"status"`
	MeetingLink   string     `json:"meeting_link,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StartsAt combines the slot's date and "HH:MM" time into a UTC instant.
func (s InterviewSlot) StartsAt() time.Time {
	t, err := time.Parse("15:04", s.ScheduledTime)
	if err != nil {
		return s.ScheduledDate
	}
	return time.Date(
		s.ScheduledDate.Year(), s.ScheduledDate.Month(), s.ScheduledDate.Day(),
		t.Hour(), t.Minute(), 0, 0, time.UTC,
	)
}

// Ref returns the slot as a SlotRef for presentation.
func (s InterviewSlot) Ref() SlotRef {
	return SlotRef{Date: s.ScheduledDate, Time: s.ScheduledTime}
}
