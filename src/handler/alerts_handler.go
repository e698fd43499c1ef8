package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"guardian/src/model"
	"guardian/src/repository"
)

// ListAlertsHandler lists alerts for the acting tenant.
func ListAlertsHandler(repo *repository.AlertRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		options := repository.AlertSearchOptions{TenantID: actor.TenantID}

		if raw := r.URL.Query().Get("type"); raw != "" {
			alertType := model.AlertType(raw)
			options.AlertType = &alertType
		}
		if raw := r.URL.Query().Get("severity"); raw != "" {
			severity := model.Severity(raw)
			if !severity.Valid() {
				http.Error(w, "invalid severity", http.StatusBadRequest)
				return
			}
			options.Severity = &severity
		}
		options.Unresolved = r.URL.Query().Get("unresolved") == "true"

		limit, offset, okPage := parsePagination(r, w)
		if !okPage {
			return
		}
		options.Limit = limit
		options.Offset = offset

		alerts, err := repo.Search(r.Context(), options)
		if err != nil {
			logger.WithError(err).Error("failed to search alerts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, alerts)
	}
}

func alertFromRequest(repo *repository.AlertRepository, w http.ResponseWriter, r *http.Request, tenantID string) *model.GuardianAlert {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil
	}

	alert, err := repo.FindByID(r.Context(), tenantID, uint(id))
	if err != nil {
		logger.WithError(err).Error("failed to fetch alert")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	if alert == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "alert not found"})
		return nil
	}
	return alert
}

// AcknowledgeAlertHandler stamps the acknowledged transition.
func AcknowledgeAlertHandler(repo *repository.AlertRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		alert := alertFromRequest(repo, w, r, actor.TenantID)
		if alert == nil {
			return
		}

		if err := repo.Acknowledge(r.Context(), alert, actor.ExecutedBy(), time.Now()); err != nil {
			logger.WithError(err).Error("failed to acknowledge alert")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	}
}

// ResolveAlertHandler stamps the resolved transition; resolving also
// acknowledges.
func ResolveAlertHandler(repo *repository.AlertRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		alert := alertFromRequest(repo, w, r, actor.TenantID)
		if alert == nil {
			return
		}

		if err := repo.Resolve(r.Context(), alert, actor.ExecutedBy(), time.Now()); err != nil {
			logger.WithError(err).Error("failed to resolve alert")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	}
}
