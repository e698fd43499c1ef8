package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"guardian/src/guardian"
	"guardian/src/model"
	"guardian/src/repository"
)

type errorIngester interface {
	HandleError(ctx context.Context, report guardian.ErrorReport) (*model.ErrorDetection, error)
}

// ReportErrorHandler ingests one structured error submission. Detection
// must never fail the original request path, so governance outcomes are
// reported in the body, not as failure statuses.
func ReportErrorHandler(engine errorIngester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		var report guardian.ErrorReport
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&report); err != nil {
			logger.WithError(err).Warn("invalid error report payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		report.TenantID = actor.TenantID

		det, err := engine.HandleError(r.Context(), report)
		if err != nil {
			if errors.Is(err, guardian.ErrDetectionDisabled) {
				writeJSON(w, http.StatusAccepted, map[string]interface{}{
					"accepted": false,
					"reason":   err.Error(),
				})
				return
			}
			// Input rejections (an unknown environment for one) map to
			// 400; everything else stays an internal failure.
			writeEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"accepted":  true,
			"detection": det,
		})
	}
}

type errorSearcher interface {
	Search(ctx context.Context, options repository.ErrorSearchOptions) ([]model.ErrorDetection, error)
	FindByID(ctx context.Context, tenantID string, id uint) (*model.ErrorDetection, error)
}

// SearchErrorsHandler lists detections for the acting tenant with filters
// and pagination.
func SearchErrorsHandler(repo errorSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		options := repository.ErrorSearchOptions{TenantID: actor.TenantID}

		if raw := r.URL.Query().Get("severity"); raw != "" {
			severity := model.Severity(raw)
			if !severity.Valid() {
				http.Error(w, "invalid severity", http.StatusBadRequest)
				return
			}
			options.Severity = &severity
		}
		if raw := r.URL.Query().Get("type"); raw != "" {
			errorType := model.ErrorType(raw)
			options.ErrorType = &errorType
		}
		if raw := r.URL.Query().Get("module"); raw != "" {
			options.Module = &raw
		}
		if raw := r.URL.Query().Get("environment"); raw != "" {
			env := model.Environment(raw)
			if !env.Valid() {
				http.Error(w, "invalid environment", http.StatusBadRequest)
				return
			}
			options.Environment = &env
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

		detections, err := repo.Search(r.Context(), options)
		if err != nil {
			logger.WithError(err).Error("failed to search error detections")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, detections)
	}
}

// GetErrorHandler fetches one detection by id.
func GetErrorHandler(repo errorSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		det, err := repo.FindByID(r.Context(), actor.TenantID, uint(id))
		if err != nil {
			logger.WithError(err).Error("failed to fetch error detection")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if det == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "error detection not found"})
			return
		}
		writeJSON(w, http.StatusOK, det)
	}
}

// DefaultReportErrorHandler wires the handler to the production engine.
func DefaultReportErrorHandler() http.HandlerFunc {
	return ReportErrorHandler(guardian.NewEngine())
}
