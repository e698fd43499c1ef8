package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"guardian/src/database"
	"guardian/src/model"
)

// ConfigRepository handles the per-tenant guardian settings row.
type ConfigRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a new repository instance using the main
// read/write database.
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *ConfigRepository) WithDB(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// GetOrCreate returns the tenant's settings row, lazily creating it with
// safe defaults. The unique index on tenant_id makes concurrent first
// calls converge on one row: a losing insert re-reads the winner.
func (r *ConfigRepository) GetOrCreate(ctx context.Context, tenantID string) (*model.GuardianConfig, error) {
	var cfg model.GuardianConfig
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := model.DefaultGuardianConfig(tenantID)
	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// another worker created it first
			if err := r.db.WithContext(ctx).
				Where("tenant_id = ?", tenantID).
				First(&cfg).Error; err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "ConfigRepository",
			"op":     "GetOrCreate",
			"tenant": tenantID,
		}).WithError(err).Error("Failed to create guardian config")
		return nil, err
	}
	return fresh, nil
}

// Update saves changes to the tenant settings row.
func (r *ConfigRepository) Update(ctx context.Context, cfg *model.GuardianConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}
