package api

import (
	"io"
	"net/http"

	"github.com/Priya8975/forge-storefront/internal/ingest"
	"github.com/Priya8975/forge-storefront/internal/signature"
)

const (
	maxWebhookBody = 1 << 20
	scopeWebhook   = "webhook"
)

type WebhookHandler struct {
	ingest *ingest.Service
	guard  Guard
}

// NewWebhookHandler builds the receiver. When guard is set, a client that
// keeps sending bad signatures is locked out.
func NewWebhookHandler(svc *ingest.Service, guard Guard) *WebhookHandler {
	return &WebhookHandler{ingest: svc, guard: guard}
}

// Receive hands the exact request bytes to the ingestion pipeline. The body
// must not be decoded before verification.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if lockedOut(w, r, h.guard, scopeWebhook) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if len(body) > maxWebhookBody {
		respondError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	res := h.ingest.Ingest(r.Context(), ingest.Request{
		Body:      body,
		Signature: r.Header.Get(signature.HeaderSignature),
		Timestamp: r.Header.Get(signature.HeaderTimestamp),
	})
	if h.guard != nil {
		switch res.Outcome {
		case ingest.OutcomeInvalidSignature:
			h.guard.RecordFailure(r.Context(), scopeWebhook, clientIP(r))
		case ingest.OutcomeAccepted:
			h.guard.RecordSuccess(r.Context(), scopeWebhook, clientIP(r))
		}
	}
	respondJSON(w, res.Status, res.Body)
}
