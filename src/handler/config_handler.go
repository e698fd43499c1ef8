package handler

import (
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"guardian/src/repository"
)

// GetConfigHandler returns the tenant's guardian settings, creating them
// with safe defaults on first access.
func GetConfigHandler(repo *repository.ConfigRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		cfg, err := repo.GetOrCreate(r.Context(), actor.TenantID)
		if err != nil {
			logger.WithError(err).Error("failed to load guardian config")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

type configUpdatePayload struct {
	DetectionEnabled                   *bool   `json:"detection_enabled"`
	AutoCorrectionEnabled              *bool   `json:"auto_correction_enabled"`
	AutoCorrectionEnvironments         *string `json:"auto_correction_environments"`
	MaxAutoCorrectionsPerDay           *int    `json:"max_auto_corrections_per_day"`
	MaxProductionAutoCorrectionsPerDay *int    `json:"max_production_auto_corrections_per_day"`
	AlertSeverities                    *string `json:"alert_severities"`
	RollbackAlertsEnabled              *bool   `json:"rollback_alerts_enabled"`
}

// UpdateConfigHandler edits the tenant's guardian settings.
func UpdateConfigHandler(repo *repository.ConfigRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		cfg, err := repo.GetOrCreate(r.Context(), actor.TenantID)
		if err != nil {
			logger.WithError(err).Error("failed to load guardian config")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		var payload configUpdatePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if payload.DetectionEnabled != nil {
			cfg.DetectionEnabled = *payload.DetectionEnabled
		}
		if payload.AutoCorrectionEnabled != nil {
			cfg.AutoCorrectionEnabled = *payload.AutoCorrectionEnabled
		}
		if payload.AutoCorrectionEnvironments != nil {
			cfg.AutoCorrectionEnvironments = *payload.AutoCorrectionEnvironments
		}
		if payload.MaxAutoCorrectionsPerDay != nil {
			if *payload.MaxAutoCorrectionsPerDay < 0 {
				http.Error(w, "invalid max_auto_corrections_per_day", http.StatusBadRequest)
				return
			}
			cfg.MaxAutoCorrectionsPerDay = *payload.MaxAutoCorrectionsPerDay
		}
		if payload.MaxProductionAutoCorrectionsPerDay != nil {
			if *payload.MaxProductionAutoCorrectionsPerDay < 0 {
				http.Error(w, "invalid max_production_auto_corrections_per_day", http.StatusBadRequest)
				return
			}
			cfg.MaxProductionAutoCorrectionsPerDay = *payload.MaxProductionAutoCorrectionsPerDay
		}
		if payload.AlertSeverities != nil {
			cfg.AlertSeverities = *payload.AlertSeverities
		}
		if payload.RollbackAlertsEnabled != nil {
			cfg.RollbackAlertsEnabled = *payload.RollbackAlertsEnabled
		}

		if err := repo.Update(r.Context(), cfg); err != nil {
			logger.WithError(err).Error("failed to update guardian config")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}
