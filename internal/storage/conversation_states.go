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

// LoadConversationState returns the live dialogue session for a candidate.
// Expired rows are treated as absent: ErrNotFound, same as no row at all.
func (db *DB) LoadConversationState(ctx context.Context, candidateID uuid.UUID) (model.ConversationState, error) {
	var s model.ConversationState
	err := db.pool.QueryRow(ctx,
		`SELECT candidate_id, flow, stage, time_preference, shown_slots,
		        selected_slot_index, scheduling_context, last_message, expires_at, updated_at
		 FROM conversation_states
		 WHERE candidate_id = $1 AND expires_at > now()`,
		candidateID,
	).Scan(
		&s.CandidateID, &s.Flow, &s.Stage, &s.TimePreference, &s.ShownSlots,
		&s.SelectedSlotIndex, &s.SchedulingContext, &s.LastMessage, &s.ExpiresAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ConversationState{}, ErrNotFound
	}
	if err != nil {
		return model.ConversationState{}, fmt.Errorf("storage: load conversation state: %w", err)
	}
	return s, nil
}

// SaveConversationState replaces the candidate's session wholesale and stamps
// a fresh expiry of now + ttl. Last write wins per candidate — the row is
// never patched field-by-field.
func (db *DB) SaveConversationState(ctx context.Context, s model.ConversationState, ttl time.Duration) error {
	shown := s.ShownSlots
	if shown == nil {
		shown = []model.SlotRef{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO conversation_states
		   (candidate_id, flow, stage, time_preference, shown_slots,
		    selected_slot_index, scheduling_context, last_message, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now() + make_interval(secs => $9), now())
		 ON CONFLICT (candidate_id) DO UPDATE SET
		   flow = EXCLUDED.flow,
		   stage = EXCLUDED.stage,
		   time_preference = EXCLUDED.time_preference,
		   shown_slots = EXCLUDED.shown_slots,
		   selected_slot_index = EXCLUDED.selected_slot_index,
		   scheduling_context = EXCLUDED.scheduling_context,
		   last_message = EXCLUDED.last_message,
		   expires_at = EXCLUDED.expires_at,
		   updated_at = EXCLUDED.updated_at`,
		s.CandidateID, s.Flow, s.Stage, s.TimePreference, shown,
		s.SelectedSlotIndex, s.SchedulingContext, s.LastMessage, ttl.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("storage: save conversation state: %w", err)
	}
	return nil
}

// ClearConversationState deletes the candidate's session. Called synchronously
// after a booking is confirmed so a completed flow cannot be re-entered.
func (db *DB) ClearConversationState(ctx context.Context, candidateID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM conversation_states WHERE candidate_id = $1`, candidateID,
	)
	if err != nil {
		return fmt.Errorf("storage: clear conversation state: %w", err)
	}
	return nil
}

// DeleteExpiredConversationStates reaps stale session rows. Loads already
// exclude expired rows, so this only keeps the table small; it is called by
// the background retention sweep.
func (db *DB) DeleteExpiredConversationStates(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM conversation_states WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired conversation states: %w", err)
	}
	return tag.RowsAffected(), nil
}
