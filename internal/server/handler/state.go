package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/predictory-labs/predictory/internal/domain"
)

// StateService defines the methods that the state handler requires from the
// service layer.
type StateService interface {
	State(ctx context.Context) (domain.ContractState, error)
}

// StateHandler serves the protocol configuration endpoint.
type StateHandler struct {
	svc    StateService
	logger *slog.Logger
}

// NewStateHandler creates a StateHandler with the given service and logger.
func NewStateHandler(svc StateService, logger *slog.Logger) *StateHandler {
	return &StateHandler{svc: svc, logger: logHandler(logger, "state")}
}

// GetState returns the contract state singleton.
// GET /api/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.State(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contract state not initialized")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get state failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get contract state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
