package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/hireloop/internal/model"
)

// UpsertQueueEntry replaces the candidate's interview-queue row.
func (db *DB) UpsertQueueEntry(ctx context.Context, e model.QueueEntry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO interview_queue (candidate_id, priority_score, preferred_times, queue_status, urgency_level)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (candidate_id) DO UPDATE SET
		   priority_score = EXCLUDED.priority_score,
		   preferred_times = EXCLUDED.preferred_times,
		   queue_status = EXCLUDED.queue_status,
		   urgency_level = EXCLUDED.urgency_level,
		   updated_at = now()`,
		e.CandidateID, e.PriorityScore, e.PreferredTimes, e.QueueStatus, e.UrgencyLevel,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert queue entry: %w", err)
	}
	return nil
}

// GetQueueEntry returns the candidate's queue row, or ErrNotFound.
func (db *DB) GetQueueEntry(ctx context.Context, candidateID uuid.UUID) (model.QueueEntry, error) {
	var e model.QueueEntry
	err := db.pool.QueryRow(ctx,
		`SELECT candidate_id, priority_score, preferred_times, queue_status, urgency_level, enqueued_at, updated_at
		 FROM interview_queue WHERE candidate_id = $1`,
		candidateID,
	).Scan(
		&e.CandidateID, &e.PriorityScore, &e.PreferredTimes,
		&e.QueueStatus, &e.UrgencyLevel, &e.EnqueuedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.QueueEntry{}, ErrNotFound
	}
	if err != nil {
		return model.QueueEntry{}, fmt.Errorf("storage: get queue entry: %w", err)
	}
	return e, nil
}

// DeleteQueueEntry removes a candidate from the queue (after a booking).
func (db *DB) DeleteQueueEntry(ctx context.Context, candidateID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM interview_queue WHERE candidate_id = $1`, candidateID,
	)
	if err != nil {
		return fmt.Errorf("storage: delete queue entry: %w", err)
	}
	return nil
}

// RefreshQueueUrgencies recomputes urgency for waiting entries from wait
// time: >48h high, >24h medium. Critical is only ever set by escalation
// logic, so it is never downgraded here. Returns the number of rows changed.
func (db *DB) RefreshQueueUrgencies(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE interview_queue
		 SET urgency_level = CASE
		       WHEN enqueued_at <= now() - interval '48 hours' THEN 'high'
		       WHEN enqueued_at <= now() - interval '24 hours' THEN 'medium'
		       ELSE urgency_level
		     END,
		     updated_at = now()
		 WHERE queue_status = 'waiting'
		   AND urgency_level NOT IN ('critical')
		   AND ((enqueued_at <= now() - interval '48 hours' AND urgency_level <> 'high')
		     OR (enqueued_at <= now() - interval '24 hours' AND enqueued_at > now() - interval '48 hours' AND urgency_level NOT IN ('medium', 'high')))`,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: refresh queue urgencies: %w", err)
	}
	return tag.RowsAffected(), nil
}
