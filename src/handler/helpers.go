package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"guardian/src/auth"
	"guardian/src/guardian"
	"guardian/src/model"
	"guardian/src/repository"
)

// actorFromRequest resolves the acting tenant and user from headers. The
// surrounding deployment authenticates these upstream; the guardian
// surface only requires that a tenant is present.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (*auth.Actor, bool) {
	if actor, ok := auth.GetActorFromContext(r.Context()); ok && actor != nil && actor.TenantID != "" {
		return actor, true
	}
	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return &auth.Actor{
		TenantID: tenantID,
		UserID:   r.Header.Get("X-User-ID"),
	}, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeEngineError maps governance errors to the precise status codes the
// admin surface promises: not found, already decided, not reversible,
// concurrency conflict, validation.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guardian.ErrCorrectionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, guardian.ErrAlreadyDecided):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, guardian.ErrUserRequired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, guardian.ErrNotReversible):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrProbableCauseTooShort),
		errors.Is(err, model.ErrDescriptionTooShort),
		errors.Is(err, model.ErrImpactTooShort),
		errors.Is(err, model.ErrReversibilityTooShort),
		errors.Is(err, model.ErrMissingAction),
		errors.Is(err, model.ErrInvalidEnvironment):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.WithError(err).Error("guardian operation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
	}
}

func parsePagination(r *http.Request, w http.ResponseWriter) (limit, offset int, ok bool) {
	page := 1
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		parsed, err := strconv.Atoi(pageParam)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return 0, 0, false
		}
		page = parsed
	}

	pageSize := 20
	if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
		parsed, err := strconv.Atoi(sizeParam)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid pageSize", http.StatusBadRequest)
			return 0, 0, false
		}
		pageSize = parsed
	}

	return pageSize, (page - 1) * pageSize, true
}

func parseTimeParam(r *http.Request, w http.ResponseWriter, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return nil, false
	}
	return &parsed, true
}
