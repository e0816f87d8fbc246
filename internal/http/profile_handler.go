package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saaskit/internal/auth"
	"saaskit/internal/profiles"
)

// ProfileService is the profile store used by the handlers.
type ProfileService interface {
	Get(ctx context.Context, id uuid.UUID) (profiles.Profile, error)
	List(ctx context.Context) ([]profiles.Profile, error)
	Update(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileHandler exposes the profile endpoints.
type ProfileHandler struct {
	service ProfileService
	logger  *zap.Logger
}

// NewProfileHandler creates a handler.
func NewProfileHandler(service ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

// Get returns one profile. Callers may read their own row; admins any row.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if !h.authorizeAccess(w, r, id) {
		return
	}

	profile, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Patch applies a partial update. Non-admins may only change their own
// self-service fields.
func (h *ProfileHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var patch profiles.Patch
	if err := decodeJSONBody(w, r, &patch); err != nil {
		writeJSONError(w, err)
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	if principal != nil {
		admin, err := h.isAdmin(r.Context(), principal)
		if err != nil {
			h.handleServiceError(w, r, id, err)
			return
		}
		if !admin && (principal.UserID != id || !patch.OnlySelfServiceFields()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	updated, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.handleServiceError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ProfileHandler) authorizeAccess(w http.ResponseWriter, r *http.Request, id uuid.UUID) bool {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil || principal.UserID == id {
		return true
	}
	admin, err := h.isAdmin(r.Context(), principal)
	if err != nil {
		h.handleServiceError(w, r, id, err)
		return false
	}
	if !admin {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (h *ProfileHandler) isAdmin(ctx context.Context, principal *auth.Principal) (bool, error) {
	caller, err := h.service.Get(ctx, principal.UserID)
	if errors.Is(err, profiles.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return caller.IsAdmin(), nil
}

// handleServiceError maps service errors to responses. id is the profile the
// request targets, or uuid.Nil for collection routes.
func (h *ProfileHandler) handleServiceError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	if errors.Is(err, profiles.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	var validationErr *profiles.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: validationErr.Message, Details: validationErr.Fields})
		return
	}
	if errors.Is(err, profiles.ErrForbidden) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	fields := []zap.Field{zap.String("method", r.Method), zap.String("path", r.URL.Path)}
	if id != uuid.Nil {
		fields = append(fields, zap.String("id", id.String()))
	}
	h.logger.Error("profile service error", append(fields, zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
