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

// ErrConcurrencyConflict is returned when a status transition loses the
// optimistic version check against a concurrent writer.
var ErrConcurrencyConflict = errors.New("correction was modified concurrently")

// CorrectionRepository owns the append-only correction ledger and its
// decision trail. Rows are never deleted; transitions move status and
// outcome fields forward and append exactly one trail event each, in one
// transaction guarded by a version check.
type CorrectionRepository struct {
	db *gorm.DB
}

// NewCorrectionRepository creates a new repository instance using the main
// read/write database.
func NewCorrectionRepository() *CorrectionRepository {
	return &CorrectionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *CorrectionRepository) WithDB(db *gorm.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

// Create validates the justification fields and persists the ledger row in
// status PENDING together with its first trail event. Validation failure
// means nothing is written.
func (r *CorrectionRepository) Create(ctx context.Context, corr *model.Correction) error {
	if err := corr.ValidateJustifications(); err != nil {
		return err
	}

	if corr.Status == "" {
		corr.Status = model.StatusPending
	}

	logger.WithFields(map[string]interface{}{
		"repo":          "CorrectionRepository",
		"op":            "Create",
		"tenant":        corr.TenantID,
		"correction_id": corr.CorrectionID,
		"action":        corr.Action,
		"env":           corr.Environment,
	}).Info("Creating correction ledger entry")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(corr).Error; err != nil {
			return err
		}
		event := model.CorrectionEvent{
			CorrectionRef: corr.ID,
			Seq:           1,
			Timestamp:     time.Now(),
			Action:        "created",
			By:            corr.ExecutedBy,
			Status:        corr.Status,
			Detail:        corr.CorrectionDescription,
		}
		return tx.Create(&event).Error
	})
}

// Transition moves corr to a new status, applying extra column updates in
// the same statement and appending one trail event. The update is guarded
// by corr.Version; a concurrent transition on the same row makes this
// return ErrConcurrencyConflict without writing anything.
func (r *CorrectionRepository) Transition(
	ctx context.Context,
	corr *model.Correction,
	to model.CorrectionStatus,
	action, by, detail string,
	updates map[string]interface{},
) error {
	if err := model.ValidateTransition(corr.Status, to); err != nil {
		return err
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["version"] = corr.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Correction{}).
			Where("id = ? AND version = ?", corr.ID, corr.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrencyConflict
		}

		var maxSeq int
		if err := tx.Model(&model.CorrectionEvent{}).
			Where("correction_ref = ?", corr.ID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		event := model.CorrectionEvent{
			CorrectionRef: corr.ID,
			Seq:           maxSeq + 1,
			Timestamp:     time.Now(),
			Action:        action,
			By:            by,
			Status:        to,
			Detail:        detail,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		if !errors.Is(err, ErrConcurrencyConflict) {
			logger.WithFields(map[string]interface{}{
				"repo":          "CorrectionRepository",
				"op":            "Transition",
				"correction_id": corr.CorrectionID,
				"from":          corr.Status,
				"to":            to,
			}).WithError(err).Error("Failed to transition correction")
		}
		return err
	}

	corr.Status = to
	corr.Version++
	return nil
}

// AppendEvent adds a trail entry without a status change, e.g. to record a
// rollback failure on a row that stays in its last-known status.
func (r *CorrectionRepository) AppendEvent(ctx context.Context, corr *model.Correction, action, by, detail string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		if err := tx.Model(&model.CorrectionEvent{}).
			Where("correction_ref = ?", corr.ID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		event := model.CorrectionEvent{
			CorrectionRef: corr.ID,
			Seq:           maxSeq + 1,
			Timestamp:     time.Now(),
			Action:        action,
			By:            by,
			Status:        corr.Status,
			Detail:        detail,
		}
		return tx.Create(&event).Error
	})
}

// Events returns the full decision trail of a correction in order.
func (r *CorrectionRepository) Events(ctx context.Context, correctionRef uint) ([]model.CorrectionEvent, error) {
	var events []model.CorrectionEvent
	err := r.db.WithContext(ctx).
		Where("correction_ref = ?", correctionRef).
		Order("seq ASC").
		Find(&events).Error
	return events, err
}

// FindByCorrectionID fetches a ledger row with its test snapshot.
// Returns (nil, nil) if not found.
func (r *CorrectionRepository) FindByCorrectionID(ctx context.Context, tenantID, correctionID string) (*model.Correction, error) {
	var corr model.Correction
	err := r.db.WithContext(ctx).
		Preload("TestsExecuted").
		Where("tenant_id = ? AND correction_id = ?", tenantID, correctionID).
		First(&corr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &corr, nil
}

// CountExecutedSince counts automatic corrections for the daily quota:
// rows executed by GUARDIAN for this tenant and environment created at or
// after since.
func (r *CorrectionRepository) CountExecutedSince(ctx context.Context, tenantID string, env model.Environment, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Correction{}).
		Where("tenant_id = ?", tenantID).
		Where("environment = ?", env).
		Where("executed_by = ?", model.ExecutedByGuardian).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// CountByRuleSince counts ledger rows produced by one rule since a point
// in time, for the per-rule hourly ceiling.
func (r *CorrectionRepository) CountByRuleSince(ctx context.Context, ruleID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Correction{}).
		Where("rule_id = ?", ruleID).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// SaveTestResults snapshots executed test outcomes onto a correction.
func (r *CorrectionRepository) SaveTestResults(ctx context.Context, corr *model.Correction, results []model.CorrectionTestResult) error {
	for i := range results {
		results[i].CorrectionRef = corr.ID
	}
	if len(results) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&results).Error
}

// CorrectionSearchOptions filters the ledger listing.
type CorrectionSearchOptions struct {
	TenantID      string
	Status        *model.CorrectionStatus
	Environment   *model.Environment
	Action        *model.CorrectionAction
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Search lists ledger rows for a tenant, newest first.
func (r *CorrectionRepository) Search(ctx context.Context, options CorrectionSearchOptions) ([]model.Correction, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", options.TenantID)

	if options.Status != nil {
		query = query.Where("status = ?", *options.Status)
	}
	if options.Environment != nil {
		query = query.Where("environment = ?", *options.Environment)
	}
	if options.Action != nil {
		query = query.Where("action = ?", *options.Action)
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

	var corrections []model.Correction
	if err := query.Find(&corrections).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "CorrectionRepository",
			"op":     "Search",
			"tenant": options.TenantID,
		}).WithError(err).Error("Failed to search corrections")
		return nil, err
	}
	return corrections, nil
}
