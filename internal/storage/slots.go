package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/hireloop/internal/model"
)

// SlotKey builds the canonical availability key for a (date, time) pair.
func SlotKey(date time.Time, hm string) string {
	return date.Format("2006-01-02") + " " + hm
}

// BookSlot commits an interview booking. The insert is the atomic
// check-then-insert: the partial unique index on active slots decides the
// winner, so no separate availability read can race it. Losing the race
// returns ErrSlotTaken.
func (db *DB) BookSlot(ctx context.Context, candidateID uuid.UUID, date time.Time, hm string, status model.SlotStatus, meetingLink string) (model.InterviewSlot, error) {
	var s model.InterviewSlot
	err := WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		return db.pool.QueryRow(ctx,
			`INSERT INTO interview_slots (candidate_id, scheduled_date, scheduled_time, status, meeting_link)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, candidate_id, scheduled_date, scheduled_time, status, meeting_link, created_at, updated_at`,
			candidateID, date, hm, status, meetingLink,
		).Scan(
			&s.ID, &s.CandidateID, &s.ScheduledDate, &s.ScheduledTime,
			&s.Status, &s.MeetingLink, &s.CreatedAt, &s.UpdatedAt,
		)
	})
	if isUniqueViolation(err, "interview_slots_active_unique") {
		return model.InterviewSlot{}, ErrSlotTaken
	}
	if err != nil {
		return model.InterviewSlot{}, fmt.Errorf("storage: book slot: %w", err)
	}
	return s, nil
}

// BookedTimes returns the set of (date, time) pairs occupied by scheduled or
// confirmed slots within [from, to], keyed by SlotKey. The result is
// authoritative only at read time — BookSlot remains the final arbiter.
func (db *DB) BookedTimes(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT scheduled_date, scheduled_time FROM interview_slots
		 WHERE status IN ('scheduled', 'confirmed')
		   AND scheduled_date BETWEEN $1 AND $2`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: booked times: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var date time.Time
		var hm string
		if err := rows.Scan(&date, &hm); err != nil {
			return nil, fmt.Errorf("storage: booked times scan: %w", err)
		}
		taken[SlotKey(date, hm)] = true
	}
	return taken, rows.Err()
}

// NextSlotForCandidate returns the candidate's earliest upcoming scheduled or
// confirmed interview, or ErrNotFound. Used to derive escalation urgency.
func (db *DB) NextSlotForCandidate(ctx context.Context, candidateID uuid.UUID) (model.InterviewSlot, error) {
	var s model.InterviewSlot
	err := db.pool.QueryRow(ctx,
		`SELECT id, candidate_id, scheduled_date, scheduled_time, status, meeting_link, created_at, updated_at
		 FROM interview_slots
		 WHERE candidate_id = $1
		   AND status IN ('scheduled', 'confirmed')
		   AND scheduled_date >= current_date
		 ORDER BY scheduled_date, scheduled_time
		 LIMIT 1`,
		candidateID,
	).Scan(
		&s.ID, &s.CandidateID, &s.ScheduledDate, &s.ScheduledTime,
		&s.Status, &s.MeetingLink, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.InterviewSlot{}, ErrNotFound
	}
	if err != nil {
		return model.InterviewSlot{}, fmt.Errorf("storage: next slot for candidate: %w", err)
	}
	return s, nil
}

// UpdateSlotStatus moves a slot to a new lifecycle status.
// Slots are never deleted; cancellations and completions are status writes.
func (db *DB) UpdateSlotStatus(ctx context.Context, id uuid.UUID, status model.SlotStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE interview_slots SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("storage: update slot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
