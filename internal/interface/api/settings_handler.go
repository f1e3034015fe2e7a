package api

import (
	"encoding/json"
	"net/http"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"
	"tcar-claims-service/pkg/logger"

	"github.com/gorilla/mux"
)

// SettingsHandler reads and replaces the notification recipient settings
type SettingsHandler struct {
	settingsRepo repository.NotificationSettingsRepository
	logger       logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsRepo repository.NotificationSettingsRepository, logger logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsRepo: settingsRepo,
		logger:       logger,
	}
}

// RegisterRoutes registers settings routes
func (h *SettingsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/notification-settings", h.GetSettings).Methods(http.MethodGet)
	r.HandleFunc("/notification-settings", h.SaveSettings).Methods(http.MethodPost, http.MethodPut)
}

// GetSettings returns the stored settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsRepo.Load(r.Context())
	if err != nil {
		respondError(w, h.logger, apperror.Internal("failed to load notification settings", err))
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// SaveSettings replaces the settings and returns them normalized
func (h *SettingsHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings entity.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, h.logger, apperror.Validation("invalid request body"))
		return
	}
	if err := settings.Validate(); err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := h.settingsRepo.Save(r.Context(), &settings); err != nil {
		respondError(w, h.logger, apperror.Internal("failed to save notification settings", err))
		return
	}

	h.logger.Info("Notification settings saved", "groups", len(settings.Groups))
	respondJSON(w, http.StatusOK, settings)
}
