package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/service"
)

// EventService defines the methods that the event handler requires from the
// service layer.
type EventService interface {
	Events(ctx context.Context, phase string) ([]service.EventSummary, error)
	Snapshot(ctx context.Context, id domain.EventID) (client.EventSnapshot, error)
	Appeal(ctx context.Context, id domain.EventID) (domain.Appellation, error)
}

// EventHandler serves event-related HTTP endpoints.
type EventHandler struct {
	svc    EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler with the given service and logger.
func NewEventHandler(svc EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logHandler(logger, "events")}
}

// listEventsResponse wraps the list endpoint output with metadata.
type listEventsResponse struct {
	Events []service.EventSummary `json:"events"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// ListEvents returns events with pagination, optionally filtered by phase.
// GET /api/events?phase=active&limit=50&offset=0
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseListOpts(r)
	phase := r.URL.Query().Get("phase")

	events, err := h.svc.Events(r.Context(), phase)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	total := len(events)
	writeJSON(w, http.StatusOK, listEventsResponse{
		Events: paginate(events, limit, offset),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetEvent returns the full snapshot of a single event.
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEventID(w, r)
	if !ok {
		return
	}

	snap, err := h.svc.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get event failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetAppeal returns the dispute aggregate of an event.
// GET /api/events/{id}/appeal
func (h *EventHandler) GetAppeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEventID(w, r)
	if !ok {
		return
	}

	appeal, err := h.svc.Appeal(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no appeal recorded")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get appeal failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get appeal")
		return
	}

	writeJSON(w, http.StatusOK, appeal)
}

// parseEventID decodes the {id} path parameter, writing a 400 response and
// returning false when it is missing or malformed.
func parseEventID(w http.ResponseWriter, r *http.Request) (domain.EventID, bool) {
	raw := pathParam(r, "id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing event id")
		return domain.EventID{}, false
	}
	id, err := domain.ParseEventID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return domain.EventID{}, false
	}
	return id, true
}
