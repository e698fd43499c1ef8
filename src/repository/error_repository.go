package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"guardian/src/database"
	"guardian/src/model"
)

// DedupWindow is the rolling window during which identical errors are
// folded into one incident.
const DedupWindow = time.Hour

// ErrorRepository handles persistence and deduplication lookups for
// detected errors.
type ErrorRepository struct {
	db *gorm.DB
}

// NewErrorRepository creates a new repository instance using the main
// read/write database.
func NewErrorRepository() *ErrorRepository {
	return &ErrorRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *ErrorRepository) WithDB(db *gorm.DB) *ErrorRepository {
	return &ErrorRepository{db: db}
}

// Create persists a new error detection.
func (r *ErrorRepository) Create(ctx context.Context, det *model.ErrorDetection) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "ErrorRepository",
		"op":       "Create",
		"tenant":   det.TenantID,
		"severity": det.Severity,
		"type":     det.ErrorType,
		"env":      det.Environment,
	}).Debug("Creating error detection")

	err := r.db.WithContext(ctx).Create(det).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ErrorRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create error detection")
		return err
	}
	return nil
}

// FindDuplicate looks up an existing detection with the same dedup
// fingerprint whose last occurrence falls inside the window ending at now.
// Returns (nil, nil) when no duplicate exists.
func (r *ErrorRepository) FindDuplicate(ctx context.Context, det *model.ErrorDetection, now time.Time) (*model.ErrorDetection, error) {
	fingerprint := det.Fingerprint
	if fingerprint == "" {
		fingerprint = det.ComputeFingerprint()
	}

	var existing model.ErrorDetection
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", det.TenantID).
		Where("fingerprint = ?", fingerprint).
		Where("last_occurrence_at >= ?", now.Add(-DedupWindow)).
		Order("last_occurrence_at DESC").
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "ErrorRepository",
			"op":     "FindDuplicate",
			"tenant": det.TenantID,
		}).WithError(err).Error("Failed to run dedup lookup")
		return nil, err
	}
	return &existing, nil
}

// IncrementOccurrence folds one more sighting into an existing incident.
// The counter update is a single atomic statement so concurrent repeats
// never lose increments.
func (r *ErrorRepository) IncrementOccurrence(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ErrorDetection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"occurrence_count":   gorm.Expr("occurrence_count + 1"),
			"last_occurrence_at": at,
		}).Error
}

// FindByID fetches a single detection scoped to a tenant.
// Returns (nil, nil) if not found.
func (r *ErrorRepository) FindByID(ctx context.Context, tenantID string, id uint) (*model.ErrorDetection, error) {
	var det model.ErrorDetection
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&det, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &det, nil
}

// LinkCorrection records the weak back-reference from an incident to the
// correction that resolved it and marks it processed.
func (r *ErrorRepository) LinkCorrection(ctx context.Context, id uint, correctionID string) error {
	return r.db.WithContext(ctx).
		Model(&model.ErrorDetection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"correction_id": correctionID,
			"is_processed":  true,
		}).Error
}

// ErrorSearchOptions filters the detection listing.
type ErrorSearchOptions struct {
	TenantID      string
	Severity      *model.Severity
	ErrorType     *model.ErrorType
	Module        *string
	Environment   *model.Environment
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Search lists detections for a tenant, newest first.
func (r *ErrorRepository) Search(ctx context.Context, options ErrorSearchOptions) ([]model.ErrorDetection, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", options.TenantID)

	if options.Severity != nil {
		query = query.Where("severity = ?", *options.Severity)
	}
	if options.ErrorType != nil {
		query = query.Where("error_type = ?", *options.ErrorType)
	}
	if options.Module != nil {
		query = query.Where("module = ?", *options.Module)
	}
	if options.Environment != nil {
		query = query.Where("environment = ?", *options.Environment)
	}
	if options.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *options.CreatedAfter)
	}
	if options.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *options.CreatedBefore)
	}

	query = query.Order("created_at DESC, id DESC")

	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var detections []model.ErrorDetection
	if err := query.Find(&detections).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "ErrorRepository",
			"op":     "Search",
			"tenant": options.TenantID,
		}).WithError(err).Error("Failed to search error detections")
		return nil, err
	}
	return detections, nil
}
