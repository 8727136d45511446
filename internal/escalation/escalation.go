// Package escalation hands conversations that need a human off to the
// support-desk system.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hireloop/hireloop/internal/model"
)

// Escalator files escalation tickets with an external support desk.
type Escalator interface {
	Escalate(ctx context.Context, ticket model.EscalationTicket) error
}

// HTTPEscalator posts tickets to a support-desk webhook.
type HTTPEscalator struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPEscalator creates an escalator that POSTs to baseURL/tickets.
func NewHTTPEscalator(baseURL, token string, logger *slog.Logger) *HTTPEscalator {
	return &HTTPEscalator{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Escalate files the ticket. A non-2xx response is an error; the caller
// decides whether the turn can proceed without the ticket.
func (e *HTTPEscalator) Escalate(ctx context.Context, ticket model.EscalationTicket) error {
	body, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("escalation: marshal ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/tickets", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("escalation: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("escalation: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("escalation: status %d: %s", resp.StatusCode, string(msg))
	}

	e.logger.Info("escalation ticket filed",
		"candidate_id", ticket.CandidateID,
		"urgency", ticket.Urgency,
		"trigger", ticket.TriggerType,
	)
	return nil
}

// NoopEscalator drops tickets. Used when no support desk is configured;
// tickets still reach admins through the escalation event feed.
type NoopEscalator struct{}

// Escalate does nothing.
func (NoopEscalator) Escalate(context.Context, model.EscalationTicket) error { return nil }
