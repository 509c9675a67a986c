package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/Priya8975/forge-storefront/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// EventReader is the read side of the webhook event log.
type EventReader interface {
	GetWebhookEvent(ctx context.Context, id string) (*domain.WebhookEvent, error)
	ListWebhookEvents(ctx context.Context, f store.EventFilter) ([]domain.WebhookEvent, error)
}

type EventHandler struct {
	events EventReader
	logger *zap.Logger
}

func NewEventHandler(events EventReader, logger *zap.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EventFilter{
		Event:  q.Get("event"),
		FormID: q.Get("form_id"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = n
	}

	events, err := h.events.ListWebhookEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list webhook events", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.events.GetWebhookEvent(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get webhook event", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	respondJSON(w, http.StatusOK, ev)
}
