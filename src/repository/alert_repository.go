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

// AlertRepository handles guardian alert persistence and its read /
// acknowledged / resolved lifecycle.
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new repository instance using the main
// read/write database.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *AlertRepository) WithDB(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create persists a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *model.GuardianAlert) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "AlertRepository",
		"op":       "Create",
		"tenant":   alert.TenantID,
		"type":     alert.AlertType,
		"severity": alert.Severity,
	}).Info("Creating guardian alert")

	return r.db.WithContext(ctx).Create(alert).Error
}

// FindByID fetches an alert scoped to a tenant. Returns (nil, nil) if not
// found.
func (r *AlertRepository) FindByID(ctx context.Context, tenantID string, id uint) (*model.GuardianAlert, error) {
	var alert model.GuardianAlert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&alert, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// Acknowledge stamps the acknowledged transition. Acknowledging an already
// acknowledged alert is a no-op.
func (r *AlertRepository) Acknowledge(ctx context.Context, alert *model.GuardianAlert, by string, at time.Time) error {
	if alert.IsAcknowledged {
		return nil
	}
	updates := map[string]interface{}{
		"is_acknowledged": true,
		"acknowledged_by": by,
		"acknowledged_at": at,
	}
	if !alert.IsRead {
		updates["is_read"] = true
		updates["read_by"] = by
		updates["read_at"] = at
	}
	if err := r.db.WithContext(ctx).
		Model(&model.GuardianAlert{}).
		Where("id = ?", alert.ID).
		Updates(updates).Error; err != nil {
		return err
	}
	alert.IsAcknowledged = true
	alert.AcknowledgedBy = by
	ackAt := at
	alert.AcknowledgedAt = &ackAt
	alert.IsRead = true
	return nil
}

// Resolve stamps the resolved transition. Resolving an unacknowledged
// alert also acknowledges it; resolving twice is a no-op.
func (r *AlertRepository) Resolve(ctx context.Context, alert *model.GuardianAlert, by string, at time.Time) error {
	if alert.IsResolved {
		return nil
	}
	if err := r.Acknowledge(ctx, alert, by, at); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Model(&model.GuardianAlert{}).
		Where("id = ?", alert.ID).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_by": by,
			"resolved_at": at,
		}).Error; err != nil {
		return err
	}
	alert.IsResolved = true
	alert.ResolvedBy = by
	resAt := at
	alert.ResolvedAt = &resAt
	return nil
}

// AlertSearchOptions filters the alert listing.
type AlertSearchOptions struct {
	TenantID   string
	AlertType  *model.AlertType
	Severity   *model.Severity
	Unresolved bool
	Limit      int
	Offset     int
}

// Search lists alerts for a tenant, newest first.
func (r *AlertRepository) Search(ctx context.Context, options AlertSearchOptions) ([]model.GuardianAlert, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", options.TenantID)

	if options.AlertType != nil {
		query = query.Where("alert_type = ?", *options.AlertType)
	}
	if options.Severity != nil {
		query = query.Where("severity = ?", *options.Severity)
	}
	if options.Unresolved {
		query = query.Where("is_resolved = ?", false)
	}

	query = query.Order("created_at DESC, id DESC")

	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var alerts []model.GuardianAlert
	if err := query.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
