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

// ErrSystemRuleImmutable is returned when a tenant admin tries to edit or
// deactivate a system rule.
var ErrSystemRuleImmutable = errors.New("system rules cannot be modified")

// RuleRepository handles correction rule persistence and the shared
// execution counters.
type RuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new repository instance using the main
// read/write database.
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *RuleRepository) WithDB(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// ActiveRules returns the tenant's active rules in creation order. The
// matcher relies on this ordering being deterministic: first predicate
// match wins.
func (r *RuleRepository) ActiveRules(ctx context.Context, tenantID string) ([]model.CorrectionRule, error) {
	var rules []model.CorrectionRule
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "RuleRepository",
			"op":     "ActiveRules",
			"tenant": tenantID,
		}).WithError(err).Error("Failed to load active rules")
		return nil, err
	}
	return rules, nil
}

// FindByID fetches a rule scoped to a tenant. Returns (nil, nil) if not
// found.
func (r *RuleRepository) FindByID(ctx context.Context, tenantID string, id uint) (*model.CorrectionRule, error) {
	var rule model.CorrectionRule
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&rule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// Create persists a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *model.CorrectionRule) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "RuleRepository",
		"op":     "Create",
		"tenant": rule.TenantID,
		"name":   rule.Name,
		"action": rule.Action,
	}).Info("Creating correction rule")

	return r.db.WithContext(ctx).Create(rule).Error
}

// Update saves changes to a tenant rule and bumps its version. System
// rules are immutable.
func (r *RuleRepository) Update(ctx context.Context, rule *model.CorrectionRule) error {
	if rule.IsSystemRule {
		return ErrSystemRuleImmutable
	}
	rule.Version++
	return r.db.WithContext(ctx).Save(rule).Error
}

// Deactivate soft-disables a tenant rule. System rules are immutable.
func (r *RuleRepository) Deactivate(ctx context.Context, tenantID string, id uint) error {
	rule, err := r.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return gorm.ErrRecordNotFound
	}
	if rule.IsSystemRule {
		return ErrSystemRuleImmutable
	}
	return r.db.WithContext(ctx).
		Model(&model.CorrectionRule{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

// TouchExecution stamps a firing of the rule. The counter update is a
// single atomic statement: rule counters are shared mutable state across
// every worker handling a matching error.
func (r *RuleRepository) TouchExecution(ctx context.Context, ruleID uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CorrectionRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"execution_count":   gorm.Expr("execution_count + 1"),
			"last_execution_at": at,
		}).Error
}

// RecordOutcome counts a correction success or failure against the rule.
func (r *RuleRepository) RecordOutcome(ctx context.Context, ruleID uint, success bool) error {
	column := "failure_count"
	if success {
		column = "success_count"
	}
	return r.db.WithContext(ctx).
		Model(&model.CorrectionRule{}).
		Where("id = ?", ruleID).
		Update(column, gorm.Expr(column+" + 1")).Error
}
