package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maltedev/tramite-watcher/internal/models"
	"github.com/maltedev/tramite-watcher/internal/storage"
)

type Handlers struct {
	trackingID models.TrackingID
	store      storage.StateStore
	logger     *slog.Logger
}

func NewHandlers(trackingID models.TrackingID, store storage.StateStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		trackingID: trackingID,
		store:      store,
		logger:     logger.With("component", "api"),
	}
}

// StatusResponse is the last persisted status of the watched trámite
type StatusResponse struct {
	TrackingID string `json:"tracking_id"`
	Status     string `json:"status"`
	Found      bool   `json:"found"`
}

// GetStatus returns the last status recorded by the check command
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, found, err := h.store.Load(r.Context())
	if err != nil {
		h.logger.Error("failed to load status", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load status")
		return
	}

	h.respondJSON(w, http.StatusOK, StatusResponse{
		TrackingID: h.trackingID.String(),
		Status:     status,
		Found:      found,
	})
}

// Health reports whether the state backend is readable
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}

	code := http.StatusOK
	if _, _, err := h.store.Load(r.Context()); err != nil {
		h.logger.Warn("state backend unavailable", "error", err)
		health["status"] = "error"
		health["message"] = "state backend unavailable"
		code = http.StatusServiceUnavailable
	}

	h.respondJSON(w, code, health)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
