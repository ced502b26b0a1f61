package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/predictory-labs/predictory/internal/domain"
)

// UserService defines the methods that the user handler requires from the
// service layer.
type UserService interface {
	User(ctx context.Context, owner domain.PublicKey) (domain.User, error)
	Users(ctx context.Context) ([]domain.User, error)
	UserParticipations(ctx context.Context, owner domain.PublicKey) ([]domain.Participation, error)
}

// UserHandler serves user-related HTTP endpoints.
type UserHandler struct {
	svc    UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler with the given service and logger.
func NewUserHandler(svc UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logHandler(logger, "users")}
}

// userView adds the unpacked display name to a user record.
type userView struct {
	domain.User
	Name string `json:"name"`
}

func toUserView(u domain.User) userView {
	return userView{User: u, Name: domain.TrimText(u.Name[:])}
}

// listUsersResponse wraps the list endpoint output with metadata.
type listUsersResponse struct {
	Users  []userView `json:"users"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ListUsers returns all user records with pagination.
// GET /api/users?limit=50&offset=0
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseListOpts(r)

	users, err := h.svc.Users(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list users failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	total := len(users)
	page := paginate(users, limit, offset)
	views := make([]userView, 0, len(page))
	for _, u := range page {
		views = append(views, toUserView(u))
	}

	writeJSON(w, http.StatusOK, listUsersResponse{
		Users:  views,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetUser returns a single user by its base58 address.
// GET /api/users/{address}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(w, r)
	if !ok {
		return
	}

	user, err := h.svc.User(r.Context(), owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get user failed",
			slog.String("address", owner.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, toUserView(user))
}

// ListUserParticipations returns every position held by one wallet.
// GET /api/users/{address}/participations
func (h *UserHandler) ListUserParticipations(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(w, r)
	if !ok {
		return
	}

	parts, err := h.svc.UserParticipations(r.Context(), owner)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list user participations failed",
			slog.String("address", owner.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list participations")
		return
	}
	if parts == nil {
		parts = []domain.Participation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"participations": parts})
}

// parseAddress decodes the {address} path parameter, writing a 400 response
// and returning false when it is missing or malformed.
func parseAddress(w http.ResponseWriter, r *http.Request) (domain.PublicKey, bool) {
	raw := pathParam(r, "address")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return domain.PublicKey{}, false
	}
	owner, err := domain.ParsePublicKey(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base58 address")
		return domain.PublicKey{}, false
	}
	return owner, true
}
