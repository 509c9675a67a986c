// Package ingest verifies and records inbound Forge webhooks.
//
// The WebhookEvent write is the record of truth. The Submission write that
// follows it is best effort: it may fail independently, leaving an event with
// no submission. Nothing retries or compensates for that gap.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/Priya8975/forge-storefront/internal/signature"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome classifies how a single ingestion attempt ended.
type Outcome string

const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeMalformedPayload Outcome = "malformed_payload"
	OutcomeMissingHeaders   Outcome = "missing_headers"
	OutcomeMisconfigured    Outcome = "misconfigured"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeFailed           Outcome = "failed"
)

// Repository persists verified events and their derived submissions.
type Repository interface {
	CreateWebhookEvent(ctx context.Context, event *domain.WebhookEvent) error
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
}

// Notifier is told about every accepted event after it has been stored.
type Notifier interface {
	EventAccepted(event domain.WebhookEvent)
}

// Request is the transport-neutral view of one webhook delivery. Body must be
// the exact bytes received.
type Request struct {
	Body      []byte
	Signature string
	Timestamp string
}

// Result is what the caller should answer with.
type Result struct {
	Outcome Outcome
	Status  int
	Body    any
	EventID string
}

type errorBody struct {
	Error string `json:"error"`
}

type okBody struct {
	OK bool `json:"ok"`
}

// Service runs the verification and persistence pipeline.
type Service struct {
	repo     Repository
	secret   string
	logger   *zap.Logger
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier registers a listener for accepted events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the ingestion pipeline. An empty secret is accepted here
// so misconfiguration surfaces per request as a server error instead of a
// crash; config.Load already refuses to start without one.
func NewService(repo Repository, secret string, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		secret: secret,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest processes one webhook delivery. It never panics and never returns an
// error; every failure is mapped onto the Result.
func (s *Service) Ingest(ctx context.Context, req Request) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("webhook processing failed", zap.Any("panic", rec))
			res = failed()
		}
	}()

	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil || payload == nil {
		return reject(OutcomeMalformedPayload, http.StatusBadRequest, "Invalid JSON payload")
	}

	if req.Signature == "" || req.Timestamp == "" {
		return reject(OutcomeMissingHeaders, http.StatusBadRequest, "Missing signature headers")
	}

	if s.secret == "" {
		s.logger.Error("FORGE_WEBHOOK_SECRET missing")
		return reject(OutcomeMisconfigured, http.StatusInternalServerError, "Server misconfigured")
	}

	if !signature.Verify(req.Body, s.secret, req.Timestamp, req.Signature, s.now()) {
		s.logger.Warn("invalid forge webhook signature",
			zap.String("timestamp", req.Timestamp),
			zap.Int("body_bytes", len(req.Body)),
		)
		return reject(OutcomeInvalidSignature, http.StatusUnauthorized, "Invalid signature")
	}

	receivedAt := s.now().UTC()
	event := &domain.WebhookEvent{
		Event:        stringField(payload, "event", domain.DefaultEventKind),
		FormID:       s.formID(payload),
		SubmissionID: s.submissionID(payload),
		Payload:      payload,
		ReceivedAt:   receivedAt,
	}

	if err := s.repo.CreateWebhookEvent(ctx, event); err != nil {
		s.logger.Error("webhook processing failed",
			zap.Error(fmt.Errorf("storing webhook event: %w", err)),
			zap.String("submission_id", event.SubmissionID),
		)
		return failed()
	}

	s.logger.Info("webhook event stored",
		zap.String("event_id", event.ID),
		zap.String("event", event.Event),
		zap.String("form_id", event.FormID),
		zap.String("submission_id", event.SubmissionID),
	)

	if data, ok := payload["data"].(map[string]any); ok {
		s.storeSubmission(ctx, event, payload, data)
	}

	if s.notifier != nil {
		s.notifier.EventAccepted(*event)
	}

	return Result{
		Outcome: OutcomeAccepted,
		Status:  http.StatusOK,
		Body:    okBody{OK: true},
		EventID: event.ID,
	}
}

// storeSubmission records the nested data document. Failures are logged and
// otherwise ignored.
func (s *Service) storeSubmission(ctx context.Context, event *domain.WebhookEvent, payload, data map[string]any) {
	workspaceID := stringField(payload, "workspace_id", "")
	if workspaceID == "" {
		workspaceID = stringField(data, "workspace_id", "")
	}

	sub := &domain.Submission{
		SubmissionID: event.SubmissionID,
		FormID:       event.FormID,
		WorkspaceID:  workspaceID,
		Data:         data,
		ReceivedAt:   event.ReceivedAt,
	}

	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		s.logger.Warn("failed to store submission",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("submission_id", sub.SubmissionID),
		)
	}
}

func (s *Service) formID(payload map[string]any) string {
	if id := stringField(payload, "form_id", ""); id != "" {
		return id
	}
	if data, ok := payload["data"].(map[string]any); ok {
		return stringField(data, "form_id", "")
	}
	return ""
}

// submissionID looks in the envelope first, then in the nested data document,
// and finally invents a placeholder so the event is still recorded.
func (s *Service) submissionID(payload map[string]any) string {
	for _, key := range []string{"submission_id", "id"} {
		if id := stringField(payload, key, ""); id != "" {
			return id
		}
	}
	if data, ok := payload["data"].(map[string]any); ok {
		for _, key := range []string{"id", "submission_id"} {
			if id := stringField(data, key, ""); id != "" {
				return id
			}
		}
	}
	return "unknown-" + s.newID()
}

// stringField reads a string or number field. Numbers are formatted without
// a trailing ".0" so numeric ids survive the round trip.
func stringField(m map[string]any, key, fallback string) string {
	switch v := m[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fallback
}

func reject(outcome Outcome, status int, msg string) Result {
	return Result{Outcome: outcome, Status: status, Body: errorBody{Error: msg}}
}

func failed() Result {
	return reject(OutcomeFailed, http.StatusInternalServerError, "Webhook processing failed")
}
