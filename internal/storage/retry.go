package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Transient conflict codes worth retrying: serialization_failure and
// deadlock_detected. Constraint violations (the booking arbiter) are not
// transient and pass straight through.
var retriableCodes = map[string]bool{
	"40001": true,
	"40P01": true,
}

func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return retriableCodes[pgErr.Code]
}

// WithRetry runs fn, retrying transient Postgres conflicts up to maxRetries
// additional times with jittered exponential backoff. The booking insert
// under concurrent slot selection is the main caller.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !isRetriable(err) || attempt >= maxRetries {
			return err
		}
		jitter := time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // backoff jitter, not a secret
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
}
