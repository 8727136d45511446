// Package hireloop is the public API for embedding the HireLoop interview
// scheduling engine.
//
// Platform consumers import this package to construct and extend the server
// without forking it:
//
//	app, err := hireloop.New(
//	    hireloop.WithVersion(version),
//	    hireloop.WithLogger(logger),
//	    hireloop.WithEscalator(myDeskIntegration{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: hireloop (root) imports
// internal/*, but internal/* never imports hireloop (root). Public types
// (Ticket, Slot, Confirmation) are standalone structs with no internal
// imports; conversion adapters live here because this is the only file that
// sees both sides of the boundary.
package hireloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/hireloop/hireloop/internal/config"
	"github.com/hireloop/hireloop/internal/dialogue"
	"github.com/hireloop/hireloop/internal/escalation"
	"github.com/hireloop/hireloop/internal/intent"
	"github.com/hireloop/hireloop/internal/meeting"
	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/notifier"
	"github.com/hireloop/hireloop/internal/ratelimit"
	"github.com/hireloop/hireloop/internal/router"
	"github.com/hireloop/hireloop/internal/schedule"
	"github.com/hireloop/hireloop/internal/server"
	"github.com/hireloop/hireloop/internal/status"
	"github.com/hireloop/hireloop/internal/storage"
	"github.com/hireloop/hireloop/internal/telemetry"
	"github.com/hireloop/hireloop/migrations"
)

// App is the scheduling engine lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	broker       *server.Broker // nil when no notify connection
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the scheduling engine. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("hireloop starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if cfg.SkipEmbeddedMigrations {
		logger.Info("embedded migrations skipped by config")
	} else if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// Verify critical tables exist after migration.
	var schemaOK bool
	if err := db.Pool().QueryRow(context.Background(),
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'candidates')`,
	).Scan(&schemaOK); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("schema verification: %w", err)
	}
	if !schemaOK {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("critical table 'candidates' does not exist after migration")
	}

	// Escalator — external override takes priority over the webhook client.
	var esc escalation.Escalator
	switch {
	case o.escalator != nil:
		esc = &escalatorAdapter{e: o.escalator}
	case cfg.EscalationURL != "":
		esc = escalation.NewHTTPEscalator(cfg.EscalationURL, cfg.EscalationToken, logger)
		logger.Info("escalation: webhook", "url", cfg.EscalationURL)
	default:
		esc = escalation.NoopEscalator{}
		logger.Info("escalation: disabled (no HIRELOOP_ESCALATION_URL)")
	}

	// Notifier.
	var not notifier.Notifier
	switch {
	case o.notifier != nil:
		not = &notifierAdapter{n: o.notifier}
	case cfg.NotifierURL != "":
		not = notifier.NewHTTPNotifier(cfg.NotifierURL)
		logger.Info("notifier: webhook", "url", cfg.NotifierURL)
	default:
		not = notifier.NoopNotifier{}
		logger.Info("notifier: disabled (no HIRELOOP_NOTIFIER_URL)")
	}

	var phrases dialogue.Phrases
	if o.phrases != nil {
		phrases = &phrasesAdapter{p: o.phrases}
	}

	links := meeting.NewLinkSigner(cfg.MeetingLinkSecret, cfg.MeetingLinkBaseURL, o.clock)
	engine := schedule.NewEngine(db, o.clock)
	statuses := status.New(db, logger)

	manager := dialogue.NewManager(dialogue.Config{
		Store:          db,
		Slots:          engine,
		Intents:        intent.New(),
		Escalator:      esc,
		Notifier:       not,
		Links:          links,
		Phrases:        phrases,
		Logger:         logger,
		StateTTL:       cfg.StateTTL,
		SlotWindowDays: cfg.SlotWindowDays,
		Granularity:    cfg.SlotGranularity,
		Now:            o.clock,
	})

	rt := router.New(statuses, manager, db, engine, cfg.SlotWindowDays, version, logger)

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewMemoryLimiter(float64(cfg.RateLimitPerMinute)/60.0, cfg.RateLimitPerMinute)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"per_minute", cfg.RateLimitPerMinute)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// SSE broker.
	var broker *server.Broker
	if db.HasNotifyConn() {
		broker = server.NewBroker(db, logger)
	} else {
		logger.Info("SSE broker: disabled (no notify connection)")
	}

	srv := server.New(server.ServerConfig{
		Router:              rt,
		Statuses:            statuses,
		Changes:             db,
		Links:               links,
		Logger:              logger,
		Limiter:             limiter,
		Broker:              broker,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		ServiceToken:        cfg.ServiceToken,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		broker:       broker,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts all background goroutines and the HTTP server, then blocks until
// ctx is cancelled or a fatal server error occurs. On return, Shutdown is
// called automatically — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	if a.broker != nil {
		go a.broker.Start(ctx)
	}

	go a.retentionSweepLoop(ctx)
	go a.queueRefreshLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains HTTP, then closes the limiter, OTEL providers, and the
// database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("hireloop shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())
	a.db.Close(context.Background())

	a.logger.Info("hireloop stopped")
	return nil
}

// retentionSweepLoop purges expired conversation sessions on a timer. The
// TTL check on reads already hides stale rows; the sweep just reclaims them.
func (a *App) retentionSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.RetentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, time.Minute)
			n, err := a.db.DeleteExpiredConversationStates(opCtx)
			cancel()
			if err != nil {
				a.logger.Warn("retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("retention sweep", "deleted_sessions", n)
			}
		}
	}
}

// queueRefreshLoop escalates the urgency of stale queue entries.
func (a *App) queueRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.QueueRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, time.Minute)
			n, err := a.db.RefreshQueueUrgencies(opCtx)
			cancel()
			if err != nil {
				a.logger.Warn("queue urgency refresh failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("queue urgency refresh", "updated_entries", n)
			}
		}
	}
}

// ── Public ↔ internal adapters ────────────────────────────────────────────────

type escalatorAdapter struct{ e Escalator }

func (a *escalatorAdapter) Escalate(ctx context.Context, t model.EscalationTicket) error {
	return a.e.Escalate(ctx, Ticket{
		ID:          t.ID,
		CandidateID: t.CandidateID,
		Urgency:     string(t.Urgency),
		TriggerType: t.TriggerType,
		Title:       t.Title,
		Description: t.Description,
		Context:     t.Context,
		CreatedAt:   t.CreatedAt,
	})
}

type notifierAdapter struct{ n Notifier }

func (a *notifierAdapter) Confirm(ctx context.Context, c notifier.Confirmation) error {
	return a.n.Confirm(ctx, Confirmation{
		CandidateID:   c.CandidateID,
		ScheduledDate: c.ScheduledDate,
		ScheduledTime: c.ScheduledTime,
		MeetingLink:   c.MeetingLink,
	})
}

type phrasesAdapter struct{ p PhraseProvider }

func toPublicSlot(s model.SlotRef) Slot {
	return Slot{Date: s.Date, Time: s.Time, Label: s.Label}
}

func toPublicSlots(slots []model.SlotRef) []Slot {
	out := make([]Slot, len(slots))
	for i, s := range slots {
		out[i] = toPublicSlot(s)
	}
	return out
}

func (a *phrasesAdapter) Greeting(name string) string { return a.p.Greeting(name) }
func (a *phrasesAdapter) AskTimePreference() string   { return a.p.AskTimePreference() }
func (a *phrasesAdapter) SlotsOffer(slots []model.SlotRef) string {
	return a.p.SlotsOffer(toPublicSlots(slots))
}
func (a *phrasesAdapter) BookingConfirmed(slot model.SlotRef, link string) string {
	return a.p.BookingConfirmed(toPublicSlot(slot), link)
}
func (a *phrasesAdapter) SlotUnavailable(slots []model.SlotRef) string {
	return a.p.SlotUnavailable(toPublicSlots(slots))
}
func (a *phrasesAdapter) SelectionRetry(slots []model.SlotRef) string {
	return a.p.SelectionRetry(toPublicSlots(slots))
}
func (a *phrasesAdapter) EscalationHandoff() string { return a.p.EscalationHandoff() }
func (a *phrasesAdapter) SupportAck() string        { return a.p.SupportAck() }
func (a *phrasesAdapter) ReactivationInfo() string  { return a.p.ReactivationInfo() }
func (a *phrasesAdapter) AllSet(slot *model.SlotRef) string {
	if slot == nil {
		return a.p.AllSet(nil)
	}
	s := toPublicSlot(*slot)
	return a.p.AllSet(&s)
}
func (a *phrasesAdapter) NoAvailability() string { return a.p.NoAvailability() }
func (a *phrasesAdapter) SystemError() string    { return a.p.SystemError() }
