package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saaskit/internal/auth"
	"saaskit/internal/exporter"
	"saaskit/internal/profiles"
)

// AdminHandler exposes the administrator endpoints.
type AdminHandler struct {
	profiles *ProfileHandler
	exporter *exporter.CSVExporter
	now      func() time.Time
	logger   *zap.Logger
}

// NewAdminHandler creates a handler sharing the profile handler's service.
func NewAdminHandler(profiles *ProfileHandler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{profiles: profiles, exporter: exporter.NewCSVExporter(), now: time.Now, logger: logger}
}

// RequireAdmin rejects authenticated callers whose profile is not admin.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := auth.PrincipalFromContext(r.Context())
		if principal != nil {
			admin, err := h.profiles.isAdmin(r.Context(), principal)
			if err != nil {
				h.profiles.handleServiceError(w, r, uuid.Nil, err)
				return
			}
			if !admin {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// List returns every profile, newest first, optionally filtered by the role
// and search query parameters.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	role, err := profiles.ParseRoleFilter(r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.profiles.service.List(r.Context())
	if err != nil {
		h.profiles.handleServiceError(w, r, uuid.Nil, err)
		return
	}
	list = profiles.Filter(list, profiles.FilterOptions{Role: role, Search: r.URL.Query().Get("search")})
	writeJSON(w, http.StatusOK, map[string]any{"profiles": list})
}

// Delete removes a profile.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.profiles.service.Delete(r.Context(), id); err != nil {
		h.profiles.handleServiceError(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Metrics returns the signup aggregates.
func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	list, err := h.profiles.service.List(r.Context())
	if err != nil {
		h.profiles.handleServiceError(w, r, uuid.Nil, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles.ComputeMetrics(list, h.now()))
}

// ExportCSV streams the listing as a CSV attachment.
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	list, err := h.profiles.service.List(r.Context())
	if err != nil {
		h.profiles.handleServiceError(w, r, uuid.Nil, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="profiles.csv"`)
	if err := h.exporter.Export(w, list); err != nil {
		h.logger.Error("csv export failed", zap.Error(err))
	}
}
