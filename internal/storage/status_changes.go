package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hireloop/hireloop/internal/model"
)

// AppendStatusChange journals one worker-status transition. The row is
// immutable once written; the table CHECK backs up the from != to guard.
func (db *DB) AppendStatusChange(ctx context.Context, change model.WorkerStatusChange) (model.WorkerStatusChange, error) {
	if change.FromStatus == change.ToStatus {
		return model.WorkerStatusChange{}, ErrInvalidTransition
	}
	meta := change.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO worker_status_changes (candidate_id, from_status, to_status, changed_by, reason, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		change.CandidateID, change.FromStatus, change.ToStatus,
		change.ChangedBy, change.Reason, meta,
	).Scan(&change.ID, &change.CreatedAt)
	if err != nil {
		return model.WorkerStatusChange{}, fmt.Errorf("storage: append status change: %w", err)
	}
	change.Metadata = meta
	return change, nil
}

// ListStatusChanges returns a candidate's transition history, newest first.
func (db *DB) ListStatusChanges(ctx context.Context, candidateID uuid.UUID, limit int) ([]model.WorkerStatusChange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, candidate_id, from_status, to_status, changed_by, reason, metadata, created_at
		 FROM worker_status_changes
		 WHERE candidate_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		candidateID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list status changes: %w", err)
	}
	defer rows.Close()

	var out []model.WorkerStatusChange
	for rows.Next() {
		var c model.WorkerStatusChange
		if err := rows.Scan(
			&c.ID, &c.CandidateID, &c.FromStatus, &c.ToStatus,
			&c.ChangedBy, &c.Reason, &c.Metadata, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: list status changes scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
