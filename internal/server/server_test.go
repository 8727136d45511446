package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/hireloop/internal/meeting"
	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/status"
	"github.com/hireloop/hireloop/internal/storage"
	"github.com/hireloop/hireloop/internal/testutil"
)

const testToken = "test-service-token"

type fakeRouter struct {
	payload model.ResponsePayload
	health  model.HealthResponse
	gotReq  model.MessageRequest
}

func (f *fakeRouter) HandleMessage(_ context.Context, req model.MessageRequest) model.ResponsePayload {
	f.gotReq = req
	return f.payload
}

func (f *fakeRouter) PerformHealthCheck(context.Context) model.HealthResponse {
	return f.health
}

type fakeStatuses struct {
	cls         status.Classification
	clsErr      error
	change      model.WorkerStatusChange
	changeErr   error
	gotToStatus model.WorkerStatus
}

func (f *fakeStatuses) Classify(context.Context, uuid.UUID) (status.Classification, error) {
	return f.cls, f.clsErr
}

func (f *fakeStatuses) ApplyManual(_ context.Context, _ uuid.UUID, to model.WorkerStatus, _, _ string) (model.WorkerStatusChange, error) {
	f.gotToStatus = to
	return f.change, f.changeErr
}

type fakeChanges struct{ changes []model.WorkerStatusChange }

func (f fakeChanges) ListStatusChanges(context.Context, uuid.UUID, int) ([]model.WorkerStatusChange, error) {
	return f.changes, nil
}

func newTestServer(router *fakeRouter, statuses *fakeStatuses) *Server {
	return New(ServerConfig{
		Router:              router,
		Statuses:            statuses,
		Changes:             fakeChanges{},
		Links:               meeting.NewLinkSigner("test-secret", "https://meet.example.com", nil),
		Logger:              testutil.DiscardLogger(),
		Port:                0,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		ServiceToken:        testToken,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
	})
}

func authedRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestMessageEndpoint(t *testing.T) {
	router := &fakeRouter{payload: model.ResponsePayload{
		Type:    model.ResponseGreeting,
		Content: "Hi there! Morning or afternoon?",
	}}
	srv := newTestServer(router, &fakeStatuses{})

	cid := uuid.New()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/messages", model.MessageRequest{
		CandidateID: cid,
		Message:     "hello",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cid, router.gotReq.CandidateID)

	var envelope struct {
		Data model.ResponsePayload `json:"data"`
		Meta model.ResponseMeta    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, model.ResponseGreeting, envelope.Data.Type)
	assert.NotEmpty(t, envelope.Meta.RequestID)
}

func TestMessageEndpointValidation(t *testing.T) {
	srv := newTestServer(&fakeRouter{}, &fakeStatuses{})

	tests := []struct {
		name string
		body any
	}{
		{"missing candidate id", map[string]any{"message": "hi"}},
		{"missing message", map[string]any{"candidate_id": uuid.New()}},
		{"unknown field", map[string]any{"candidate_id": uuid.New(), "message": "hi", "bogus": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/messages", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(&fakeRouter{}, &fakeStatuses{})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthOpenAndStatusCodes(t *testing.T) {
	router := &fakeRouter{health: model.HealthResponse{Status: "healthy"}}
	srv := newTestServer(router, &fakeStatuses{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil) // no auth header
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	router.health = model.HealthResponse{Status: "unhealthy"}
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCandidateStatusEndpoint(t *testing.T) {
	statuses := &fakeStatuses{cls: status.Classification{
		CurrentStatus:   model.StatusPending,
		SuggestedStatus: model.StatusPending,
		Mode:            model.FlowInterviewScheduling,
	}}
	srv := newTestServer(&fakeRouter{}, statuses)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, authedRequest(http.MethodGet,
		fmt.Sprintf("/v1/candidates/%s/status", uuid.New()), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data candidateStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, model.FlowInterviewScheduling, envelope.Data.Mode)
}

func TestCandidateStatusNotFound(t *testing.T) {
	srv := newTestServer(&fakeRouter{}, &fakeStatuses{clsErr: storage.ErrNotFound})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, authedRequest(http.MethodGet,
		fmt.Sprintf("/v1/candidates/%s/status", uuid.New()), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionEndpoint(t *testing.T) {
	statuses := &fakeStatuses{change: model.WorkerStatusChange{
		FromStatus: model.StatusActive,
		ToStatus:   model.StatusSuspended,
	}}
	srv := newTestServer(&fakeRouter{}, statuses)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, authedRequest(http.MethodPost,
		fmt.Sprintf("/v1/candidates/%s/transitions", uuid.New()),
		model.TransitionRequest{ToStatus: model.StatusSuspended, ChangedBy: "admin@example.com"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusSuspended, statuses.gotToStatus)
}

func TestTransitionRequiresChangedBy(t *testing.T) {
	srv := newTestServer(&fakeRouter{}, &fakeStatuses{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, authedRequest(http.MethodPost,
		fmt.Sprintf("/v1/candidates/%s/transitions", uuid.New()),
		model.TransitionRequest{ToStatus: model.StatusSuspended}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeetingLinkVerifyOpen(t *testing.T) {
	srv := newTestServer(&fakeRouter{}, &fakeStatuses{})

	signer := meeting.NewLinkSigner("test-secret", "https://meet.example.com", nil)
	link, err := signer.Link(uuid.New(), time.Now().AddDate(0, 0, 1), "10:00", time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	token := strings.TrimPrefix(link, "https://meet.example.com")

	req := httptest.NewRequest(http.MethodGet, token, nil) // no auth header
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/interview/garbage", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	srv := newTestServer(&fakeRouter{health: model.HealthResponse{Status: "healthy"}}, &fakeStatuses{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
