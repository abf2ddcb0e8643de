package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/bulwark/internal/protection"
	"github.com/BradenHooton/bulwark/pkg/httpx"
)

// AdminHandler exposes the protection read/override surface for the admin
// dashboard collaborator.
type AdminHandler struct {
	guard  *protection.Guard
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(guard *protection.Guard, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		guard:  guard,
		logger: logger,
	}
}

// Stats handles GET /admin/protection/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.guard.Stats())
}

// ListBans handles GET /admin/protection/bans?limit=N
func (h *AdminHandler) ListBans(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteBadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	bans := h.guard.TopBannedIPs(limit)
	if bans == nil {
		bans = []protection.BanRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"bans":  bans,
		"count": len(bans),
	})
}

// Unban handles DELETE /admin/protection/bans/{keyHash}
func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	keyHash := chi.URLParam(r, "keyHash")
	if keyHash == "" {
		httpx.WriteBadRequest(w, "key hash is required")
		return
	}

	if !h.guard.UnbanIP(keyHash) {
		httpx.WriteNotFound(w, "no active ban for key")
		return
	}

	h.logger.Info("admin unban", slog.String("key_hash", keyHash))
	w.WriteHeader(http.StatusNoContent)
}
