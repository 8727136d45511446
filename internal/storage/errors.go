package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrSlotTaken is returned when a booking loses the race for a (date, time)
// pair: another scheduled or confirmed slot already occupies it.
var ErrSlotTaken = errors.New("storage: slot already booked")

// ErrInvalidTransition is returned when a status change would violate the
// from != to constraint or references an unknown candidate.
var ErrInvalidTransition = errors.New("storage: invalid status transition")

// isUniqueViolation reports whether err is a Postgres unique_violation,
// optionally restricted to the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
