package hireloop

import (
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port        int
	databaseURL string
	notifyURL   string
	logger      *slog.Logger
	version     string
	escalator   Escalator
	notifier    Notifier
	phrases     PhraseProvider
	clock       func() time.Time
}

// WithPort overrides the TCP port from config (HIRELOOP_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY (NOTIFY_URL env var).
// Set this when using a connection pooler (e.g. PgBouncer) for queries — LISTEN/NOTIFY
// requires a direct (non-pooled) connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEscalator replaces the webhook escalator configured via
// HIRELOOP_ESCALATION_URL. Use this to deliver escalation tickets straight
// into an embedded support-desk integration.
func WithEscalator(e Escalator) Option {
	return func(o *resolvedOptions) { o.escalator = e }
}

// WithNotifier replaces the webhook notifier configured via
// HIRELOOP_NOTIFIER_URL for booking confirmations.
func WithNotifier(n Notifier) Option {
	return func(o *resolvedOptions) { o.notifier = n }
}

// WithPhraseProvider replaces the built-in candidate-facing copy deck.
func WithPhraseProvider(p PhraseProvider) Option {
	return func(o *resolvedOptions) { o.phrases = p }
}

// WithClock overrides the time source used for slot generation, session TTLs,
// and meeting-link expiry. Intended for tests and replay tooling.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.clock = now }
}
