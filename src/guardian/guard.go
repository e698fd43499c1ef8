package guardian

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"guardian/src/model"
	"guardian/src/utils"
)

// guardVerdict is the outcome of the quota and cooldown checks.
type guardVerdict int

const (
	guardAllow guardVerdict = iota
	guardCooldown
	guardRuleCeiling
	guardQuota
)

// checkGuards gates a matched rule before anything is written to the
// ledger. Cooldown and the per-rule hourly ceiling are throttles: they
// stop the pipeline silently. The daily quota is a governance limit: a
// breach raises an alert.
//
// The checks are read-then-write: two workers can both pass before either
// commits its ledger row, transiently overshooting a ceiling by at most
// N-1 concurrent workers. That bound is accepted and documented, not a
// silent bug.
func (e *Engine) checkGuards(
	ctx context.Context,
	cfg *model.GuardianConfig,
	rule *model.CorrectionRule,
	det *model.ErrorDetection,
	now time.Time,
) (guardVerdict, error) {
	if rule.CooldownSeconds > 0 && rule.LastExecutionAt != nil {
		readyAt := rule.LastExecutionAt.Add(time.Duration(rule.CooldownSeconds) * time.Second)
		if now.Before(readyAt) {
			logger.WithFields(map[string]interface{}{
				"component": "Guard",
				"tenant":    det.TenantID,
				"rule_id":   rule.ID,
				"ready_at":  readyAt,
			}).Info("Rule in cooldown, correction suppressed")
			return guardCooldown, nil
		}
	}

	if rule.MaxPerHour > 0 {
		fired, err := e.corrections.CountByRuleSince(ctx, rule.ID, utils.WindowStart(now, time.Hour))
		if err != nil {
			return guardAllow, err
		}
		if fired >= int64(rule.MaxPerHour) {
			logger.WithFields(map[string]interface{}{
				"component": "Guard",
				"tenant":    det.TenantID,
				"rule_id":   rule.ID,
				"fired":     fired,
			}).Info("Rule hourly ceiling reached, correction suppressed")
			return guardRuleCeiling, nil
		}
	}

	ceiling := cfg.DailyCeiling(det.Environment)
	executed, err := e.corrections.CountExecutedSince(ctx, det.TenantID, det.Environment, utils.StartOfDay(now))
	if err != nil {
		return guardAllow, err
	}
	if executed >= int64(ceiling) {
		logger.WithFields(map[string]interface{}{
			"component": "Guard",
			"tenant":    det.TenantID,
			"env":       det.Environment,
			"executed":  executed,
			"ceiling":   ceiling,
		}).Warn("Daily correction quota exhausted")
		return guardQuota, nil
	}

	return guardAllow, nil
}
