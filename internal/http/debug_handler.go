package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"saaskit/internal/profiles"
	"saaskit/internal/supabase"
)

// DebugSource reads straight from the identity provider with the service key.
type DebugSource interface {
	HasServiceKey() bool
	DumpProfiles(ctx context.Context) ([]profiles.Profile, error)
	ListUsers(ctx context.Context) ([]supabase.User, error)
}

// DebugHandler serves the diagnostic endpoints. Their shape is not stable.
type DebugHandler struct {
	source DebugSource
	logger *zap.Logger
}

// NewDebugHandler creates a handler. source may be nil.
func NewDebugHandler(source DebugSource, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{source: source, logger: logger}
}

// Profiles dumps the profiles table.
func (h *DebugHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	list, err := h.source.DumpProfiles(r.Context())
	if err != nil {
		h.logger.Error("debug profiles failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "profiles": list})
}

// Users lists identity provider users.
func (h *DebugHandler) Users(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	users, err := h.source.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("debug users failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(users), "users": users})
}

func (h *DebugHandler) available(w http.ResponseWriter) bool {
	if h.source == nil || !h.source.HasServiceKey() {
		writeError(w, http.StatusServiceUnavailable, "service role key is not configured")
		return false
	}
	return true
}
