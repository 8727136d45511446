package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/hireloop/internal/model"
)

const candidateColumns = `id, name, worker_status, interview_stage,
	total_jobs_completed, last_seen_at, routing_context, created_at, updated_at`

// GetCandidate returns a candidate by ID. Returns ErrNotFound if the record
// does not exist — callers must not silently default a missing candidate.
func (db *DB) GetCandidate(ctx context.Context, id uuid.UUID) (model.Candidate, error) {
	var c model.Candidate
	err := db.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.Name, &c.WorkerStatus, &c.InterviewStage,
		&c.TotalJobsCompleted, &c.LastSeenAt, &c.RoutingContext,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Candidate{}, ErrNotFound
	}
	if err != nil {
		return model.Candidate{}, fmt.Errorf("storage: get candidate: %w", err)
	}
	return c, nil
}

// CreateCandidate inserts a candidate record and returns its ID.
// Candidate records are normally owned by the external candidate store;
// this exists for bootstrap and test fixtures.
func (db *DB) CreateCandidate(ctx context.Context, c model.Candidate) (uuid.UUID, error) {
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := c.WorkerStatus
	if status == "" {
		status = model.StatusPending
	}
	stage := c.InterviewStage
	if stage == "" {
		stage = model.InterviewNotStarted
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO candidates (id, name, worker_status, interview_stage, total_jobs_completed, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, c.Name, status, stage, c.TotalJobsCompleted, c.LastSeenAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage: create candidate: %w", err)
	}
	return id, nil
}

// UpdateCandidateStatus writes a new worker status and refreshes the cached
// routing context blob in one statement.
func (db *DB) UpdateCandidateStatus(ctx context.Context, id uuid.UUID, status model.WorkerStatus, routing model.RoutingContext) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE candidates
		 SET worker_status = $2, routing_context = $3, updated_at = now()
		 WHERE id = $1`,
		id, status, routing,
	)
	if err != nil {
		return fmt.Errorf("storage: update candidate status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateInterviewStage writes a new interview stage on the candidate record.
func (db *DB) UpdateInterviewStage(ctx context.Context, id uuid.UUID, stage model.InterviewStage) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE candidates SET interview_stage = $2, updated_at = now() WHERE id = $1`,
		id, stage,
	)
	if err != nil {
		return fmt.Errorf("storage: update interview stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchCandidateLastSeen records message activity for a candidate.
func (db *DB) TouchCandidateLastSeen(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE candidates SET last_seen_at = now() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("storage: touch candidate last seen: %w", err)
	}
	return nil
}
