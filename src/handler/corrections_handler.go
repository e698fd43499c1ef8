package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"guardian/src/guardian"
	"guardian/src/model"
	"guardian/src/repository"
)

type correctionReader interface {
	Search(ctx context.Context, options repository.CorrectionSearchOptions) ([]model.Correction, error)
	FindByCorrectionID(ctx context.Context, tenantID, correctionID string) (*model.Correction, error)
	Events(ctx context.Context, correctionRef uint) ([]model.CorrectionEvent, error)
}

type correctionDecider interface {
	Approve(ctx context.Context, tenantID, correctionID, by string) (*model.Correction, error)
	Reject(ctx context.Context, tenantID, correctionID, by, reason string) (*model.Correction, error)
	RequestRollback(ctx context.Context, tenantID, correctionID, by, reason string) (*model.Correction, error)
	RequestCorrection(ctx context.Context, input guardian.ManualCorrectionInput, by string) (*model.Correction, error)
}

// SearchCorrectionsHandler lists ledger rows for the acting tenant.
func SearchCorrectionsHandler(repo correctionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		options := repository.CorrectionSearchOptions{TenantID: actor.TenantID}

		if raw := r.URL.Query().Get("status"); raw != "" {
			status := model.CorrectionStatus(raw)
			options.Status = &status
		}
		if raw := r.URL.Query().Get("environment"); raw != "" {
			env := model.Environment(raw)
			if !env.Valid() {
				http.Error(w, "invalid environment", http.StatusBadRequest)
				return
			}
			options.Environment = &env
		}
		if raw := r.URL.Query().Get("action"); raw != "" {
			action := model.CorrectionAction(raw)
			options.Action = &action
		}

		var okTime bool
		if options.CreatedAfter, okTime = parseTimeParam(r, w, "createdFrom"); !okTime {
			return
		}
		if options.CreatedBefore, okTime = parseTimeParam(r, w, "createdTo"); !okTime {
			return
		}

		limit, offset, okPage := parsePagination(r, w)
		if !okPage {
			return
		}
		options.Limit = limit
		options.Offset = offset

		corrections, err := repo.Search(r.Context(), options)
		if err != nil {
			logger.WithError(err).Error("failed to search corrections")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, corrections)
	}
}

// GetCorrectionHandler fetches one ledger row with its full decision
// trail.
func GetCorrectionHandler(repo correctionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		corr, err := repo.FindByCorrectionID(r.Context(), actor.TenantID, chi.URLParam(r, "correctionID"))
		if err != nil {
			logger.WithError(err).Error("failed to fetch correction")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if corr == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "correction not found"})
			return
		}

		events, err := repo.Events(r.Context(), corr.ID)
		if err != nil {
			logger.WithError(err).Error("failed to fetch decision trail")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"correction":     corr,
			"decision_trail": events,
		})
	}
}

// CreateCorrectionHandler accepts a manual correction request.
func CreateCorrectionHandler(engine correctionDecider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		var input guardian.ManualCorrectionInput
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&input); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		input.TenantID = actor.TenantID

		corr, err := engine.RequestCorrection(r.Context(), input, actor.ExecutedBy())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, corr)
	}
}

type decisionPayload struct {
	Reason string `json:"reason"`
}

// ApproveCorrectionHandler authorizes a blocked correction.
func ApproveCorrectionHandler(engine correctionDecider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		corr, err := engine.Approve(r.Context(), actor.TenantID, chi.URLParam(r, "correctionID"), actor.ExecutedBy())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, corr)
	}
}

// RejectCorrectionHandler terminally refuses a blocked correction.
func RejectCorrectionHandler(engine correctionDecider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		var payload decisionPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)

		corr, err := engine.Reject(r.Context(), actor.TenantID, chi.URLParam(r, "correctionID"), actor.ExecutedBy(), payload.Reason)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, corr)
	}
}

// RollbackCorrectionHandler reverses an applied reversible correction.
func RollbackCorrectionHandler(engine correctionDecider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		var payload decisionPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)

		corr, err := engine.RequestRollback(r.Context(), actor.TenantID, chi.URLParam(r, "correctionID"), actor.ExecutedBy(), payload.Reason)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, corr)
	}
}
