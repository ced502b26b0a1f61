package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/engine"
)

// maxInstructionBody bounds the size of a submitted operation.
const maxInstructionBody = 64 * 1024

// Submitter defines the method that the instruction handler requires from the
// service layer.
type Submitter interface {
	Submit(ctx context.Context, op client.Operation) (*engine.Receipt, error)
}

// InstructionHandler accepts built operations and applies them to the engine.
type InstructionHandler struct {
	svc    Submitter
	logger *slog.Logger
}

// NewInstructionHandler creates an InstructionHandler with the given service
// and logger.
func NewInstructionHandler(svc Submitter, logger *slog.Logger) *InstructionHandler {
	return &InstructionHandler{svc: svc, logger: logHandler(logger, "instructions")}
}

// SubmitInstruction decodes a client operation from the request body and
// applies it. Precondition violations map to HTTP status codes by their
// error kind.
// POST /api/instructions
func (h *InstructionHandler) SubmitInstruction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInstructionBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var op client.Operation
	if err := json.Unmarshal(body, &op); err != nil {
		writeError(w, http.StatusBadRequest, "malformed operation")
		return
	}
	if op.Instruction == "" {
		writeError(w, http.StatusBadRequest, "missing instruction")
		return
	}

	rcp, err := h.svc.Submit(r.Context(), op)
	if err != nil {
		status, msg := instructionError(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: submit instruction failed",
				slog.String("instruction", op.Instruction),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, rcp)
}

// instructionError maps an engine failure to an HTTP status and message.
func instructionError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "account not found"
	case domain.KindOf(err) == domain.KindAuthorization:
		return http.StatusForbidden, err.Error()
	case domain.KindOf(err) == domain.KindTiming:
		return http.StatusConflict, err.Error()
	case domain.KindOf(err) == domain.KindStateConflict:
		return http.StatusConflict, err.Error()
	case domain.KindOf(err) == domain.KindArithmetic:
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "instruction failed"
	}
}
