package guardian

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"guardian/src/metrics"
	"guardian/src/model"
)

var (
	// ErrCorrectionNotFound is returned for an unknown correction id.
	ErrCorrectionNotFound = errors.New("correction not found")
	// ErrNotReversible is returned when rollback is requested for a
	// correction that was recorded as irreversible.
	ErrNotReversible = errors.New("correction is not reversible")
)

// rollbackAfterTests reverses a correction whose validation tests failed.
// The row moves TESTING -> ROLLED_BACK. A failed reversal is never
// silent: the row keeps its last-known status, the failure is appended to
// the trail and a CRITICAL alert goes out.
func (e *Engine) rollbackAfterTests(ctx context.Context, cfg *model.GuardianConfig, corr *model.Correction, rule *model.CorrectionRule, actor string, started time.Time) {
	const reason = "post-correction tests failed"

	log := logger.WithFields(map[string]interface{}{
		"component":     "RollbackController",
		"correction_id": corr.CorrectionID,
	})

	if err := e.infra.Reverse(ctx, corr.Action, corr.RollbackProcedure); err != nil {
		log.WithError(err).Error("CRITICAL: rollback execution failed")
		if aerr := e.corrections.AppendEvent(ctx, corr, "rollback_failed", actor, err.Error()); aerr != nil {
			log.WithError(aerr).Error("Failed to append rollback failure to trail")
		}
		if perr := e.publisher.PublishRollbackFailed(ctx, corr, err.Error()); perr != nil {
			log.WithError(perr).Error("Failed to publish rollback failure alert")
		}
		return
	}

	ended := e.now()
	if err := e.corrections.Transition(ctx, corr, model.StatusRolledBack, "rolled_back", actor, reason,
		map[string]interface{}{
			"rolled_back":           true,
			"rollback_at":           ended,
			"rollback_reason":       reason,
			"rollback_by":           actor,
			"correction_successful": false,
			"execution_ended_at":    ended,
		}); err != nil {
		log.WithError(err).Error("Failed to record rollback")
		return
	}

	e.recordRuleOutcome(ctx, rule, false)
	metrics.ObserveRollback()
	metrics.ObserveCorrection(string(model.StatusRolledBack), ended.Sub(started))

	if cfg == nil || cfg.RollbackAlertsEnabled {
		if err := e.publisher.PublishRollback(ctx, corr, reason); err != nil {
			log.WithError(err).Error("Failed to publish rollback alert")
		}
	}

	log.Warn("Correction rolled back after failed tests")
}

// RequestRollback reverses an APPLIED correction on explicit request by an
// authorized user. Only reversible corrections qualify.
func (e *Engine) RequestRollback(ctx context.Context, tenantID, correctionID, by, reason string) (*model.Correction, error) {
	if err := requireUser(by); err != nil {
		return nil, err
	}
	corr, err := e.corrections.FindByCorrectionID(ctx, tenantID, correctionID)
	if err != nil {
		return nil, err
	}
	if corr == nil {
		return nil, ErrCorrectionNotFound
	}
	if !corr.IsReversible {
		return nil, ErrNotReversible
	}
	if err := model.ValidateTransition(corr.Status, model.StatusRolledBack); err != nil {
		return nil, err
	}

	log := logger.WithFields(map[string]interface{}{
		"component":     "RollbackController",
		"correction_id": corr.CorrectionID,
		"by":            by,
	})

	if err := e.infra.Reverse(ctx, corr.Action, corr.RollbackProcedure); err != nil {
		log.WithError(err).Error("CRITICAL: rollback execution failed")
		if aerr := e.corrections.AppendEvent(ctx, corr, "rollback_failed", by, err.Error()); aerr != nil {
			log.WithError(aerr).Error("Failed to append rollback failure to trail")
		}
		if perr := e.publisher.PublishRollbackFailed(ctx, corr, err.Error()); perr != nil {
			log.WithError(perr).Error("Failed to publish rollback failure alert")
		}
		return nil, err
	}

	now := e.now()
	if reason == "" {
		reason = "manual rollback requested"
	}
	if err := e.corrections.Transition(ctx, corr, model.StatusRolledBack, "rolled_back", by, reason,
		map[string]interface{}{
			"rolled_back":           true,
			"rollback_at":           now,
			"rollback_reason":       reason,
			"rollback_by":           by,
			"correction_successful": false,
		}); err != nil {
		return nil, err
	}
	metrics.ObserveRollback()

	cfg, err := e.configs.GetOrCreate(ctx, tenantID)
	if err == nil && cfg.RollbackAlertsEnabled {
		if perr := e.publisher.PublishRollback(ctx, corr, reason); perr != nil {
			log.WithError(perr).Error("Failed to publish rollback alert")
		}
	}

	log.Info("Correction rolled back on request")
	return corr, nil
}
