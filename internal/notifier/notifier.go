// Package notifier delivers outbound candidate notifications (booking
// confirmations) to the messaging gateway.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Confirmation is the payload sent to the messaging gateway after a booking.
type Confirmation struct {
	CandidateID   uuid.UUID `json:"candidate_id"`
	ScheduledDate string    `json:"scheduled_date"`
	ScheduledTime string    `json:"scheduled_time"`
	MeetingLink   string    `json:"meeting_link"`
}

// Notifier sends booking confirmations out of band. Delivery is best-effort:
// the booking is already committed when Confirm runs.
type Notifier interface {
	Confirm(ctx context.Context, c Confirmation) error
}

// HTTPNotifier posts confirmations to a messaging-gateway webhook.
type HTTPNotifier struct {
	url        string
	httpClient *http.Client
}

// NewHTTPNotifier creates a notifier that POSTs to url.
func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Confirm delivers one confirmation.
func (n *HTTPNotifier) Confirm(ctx context.Context, c Confirmation) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("notifier: marshal confirmation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notifier: status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// NoopNotifier drops confirmations. Used when no gateway is configured.
type NoopNotifier struct{}

// Confirm does nothing.
func (NoopNotifier) Confirm(context.Context, Confirmation) error { return nil }
