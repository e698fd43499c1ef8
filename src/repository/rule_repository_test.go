package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"guardian/src/model"
	"guardian/src/repository"
)

func seedRule(t *testing.T, repo *repository.RuleRepository, mutate func(*model.CorrectionRule)) *model.CorrectionRule {
	t.Helper()

	rule := &model.CorrectionRule{
		TenantID:            "tenant-1",
		Name:                "clear cache on exceptions",
		TriggerErrorType:    model.ErrorTypeException,
		Action:              model.ActionCacheClear,
		AllowedEnvironments: "SANDBOX",
		RiskLevel:           model.RiskLow,
		IsActive:            true,
	}
	if mutate != nil {
		mutate(rule)
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	return rule
}

func TestRuleRepository_ActiveRulesOrderedAndFiltered(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.RuleRepository{}).WithDB(db)
	ctx := context.Background()

	first := seedRule(t, repo, nil)
	second := seedRule(t, repo, func(r *model.CorrectionRule) { r.Name = "second rule" })
	seedRule(t, repo, func(r *model.CorrectionRule) { r.IsActive = false })
	seedRule(t, repo, func(r *model.CorrectionRule) { r.TenantID = "tenant-2" })

	rules, err := repo.ActiveRules(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, first.ID, rules[0].ID)
	require.Equal(t, second.ID, rules[1].ID)
}

func TestRuleRepository_InactiveFlagSurvivesCreate(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.RuleRepository{}).WithDB(db)

	rule := seedRule(t, repo, func(r *model.CorrectionRule) { r.IsActive = false })

	var stored model.CorrectionRule
	require.NoError(t, db.First(&stored, rule.ID).Error)
	require.False(t, stored.IsActive)
}

func TestRuleRepository_SystemRulesAreImmutable(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.RuleRepository{}).WithDB(db)
	ctx := context.Background()

	system := seedRule(t, repo, func(r *model.CorrectionRule) { r.IsSystemRule = true })

	system.Name = "tampered"
	require.ErrorIs(t, repo.Update(ctx, system), repository.ErrSystemRuleImmutable)
	require.ErrorIs(t, repo.Deactivate(ctx, "tenant-1", system.ID), repository.ErrSystemRuleImmutable)
}

func TestRuleRepository_Deactivate(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.RuleRepository{}).WithDB(db)
	ctx := context.Background()

	rule := seedRule(t, repo, nil)
	require.NoError(t, repo.Deactivate(ctx, "tenant-1", rule.ID))

	rules, err := repo.ActiveRules(ctx, "tenant-1")
	require.NoError(t, err)
	require.Empty(t, rules)

	require.ErrorIs(t, repo.Deactivate(ctx, "tenant-1", 9999), gorm.ErrRecordNotFound)
}

func TestRuleRepository_CountersAccumulate(t *testing.T) {
	db := newTestDB(t)
	repo := (&repository.RuleRepository{}).WithDB(db)
	ctx := context.Background()

	rule := seedRule(t, repo, nil)
	at := time.Now()

	require.NoError(t, repo.TouchExecution(ctx, rule.ID, at))
	require.NoError(t, repo.TouchExecution(ctx, rule.ID, at.Add(time.Minute)))
	require.NoError(t, repo.RecordOutcome(ctx, rule.ID, true))
	require.NoError(t, repo.RecordOutcome(ctx, rule.ID, false))
	require.NoError(t, repo.RecordOutcome(ctx, rule.ID, false))

	stored, err := repo.FindByID(ctx, "tenant-1", rule.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.ExecutionCount)
	require.Equal(t, 1, stored.SuccessCount)
	require.Equal(t, 2, stored.FailureCount)
	require.NotNil(t, stored.LastExecutionAt)
}
