package alerting

import (
	"context"
	"encoding/json"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"guardian/src/model"
	"guardian/src/repository"
)

// PrivilegedRoles receive alerts about escalations, quota breaches,
// validation requests and rollbacks.
const PrivilegedRoles = "admin,operator"

// Publisher persists guardian alerts and pushes them to the optional
// webhook channel. Publishing never fails the governance pipeline: a
// storage error is returned for logging, a delivery error is swallowed.
type Publisher struct {
	alerts   *repository.AlertRepository
	notifier *WebhookNotifier
}

// NewPublisher wires the publisher to the production repositories and the
// env-configured webhook.
func NewPublisher() *Publisher {
	return &Publisher{
		alerts:   repository.NewAlertRepository(),
		notifier: NewWebhookNotifier(),
	}
}

// NewPublisherWith builds a publisher with explicit collaborators, for
// tests and the simulation command.
func NewPublisherWith(alerts *repository.AlertRepository, notifier *WebhookNotifier) *Publisher {
	return &Publisher{alerts: alerts, notifier: notifier}
}

// Publish stores the alert and pushes it to the webhook channel.
func (p *Publisher) Publish(ctx context.Context, alert *model.GuardianAlert) error {
	if err := p.alerts.Create(ctx, alert); err != nil {
		return err
	}
	if p.notifier != nil {
		if err := p.notifier.Deliver(ctx, alert); err != nil {
			logger.WithFields(map[string]interface{}{
				"component": "Publisher",
				"tenant":    alert.TenantID,
				"type":      alert.AlertType,
			}).WithError(err).Warn("Webhook delivery failed, alert persisted only")
		}
	}
	return nil
}

func detailsJSON(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(raw)
}

// PublishCriticalError raises the detection alert for severities the
// tenant has opted into.
func (p *Publisher) PublishCriticalError(ctx context.Context, det *model.ErrorDetection) error {
	return p.Publish(ctx, &model.GuardianAlert{
		TenantID:         det.TenantID,
		AlertType:        model.AlertCriticalError,
		Severity:         det.Severity,
		Title:            fmt.Sprintf("%s error detected in %s", det.Severity, det.Environment),
		Message:          det.Message,
		ErrorDetectionID: &det.ID,
		TargetRoles:      PrivilegedRoles,
		Details: detailsJSON(map[string]interface{}{
			"error_type": det.ErrorType,
			"module":     det.Module,
			"route":      det.Route,
		}),
	})
}

// PublishQuotaExceeded raises the quota breach alert.
func (p *Publisher) PublishQuotaExceeded(ctx context.Context, tenantID string, env model.Environment, ceiling int, det *model.ErrorDetection) error {
	alert := &model.GuardianAlert{
		TenantID:    tenantID,
		AlertType:   model.AlertQuotaExceeded,
		Severity:    model.SeverityMajor,
		Title:       fmt.Sprintf("Daily correction quota reached for %s", env),
		Message:     fmt.Sprintf("Automatic corrections are suspended for %s until local midnight (ceiling %d).", env, ceiling),
		TargetRoles: PrivilegedRoles,
	}
	if det != nil {
		alert.ErrorDetectionID = &det.ID
	}
	return p.Publish(ctx, alert)
}

// PublishValidationRequired raises the human validation alert for a
// blocked correction.
func (p *Publisher) PublishValidationRequired(ctx context.Context, corr *model.Correction, reason string) error {
	return p.Publish(ctx, &model.GuardianAlert{
		TenantID:     corr.TenantID,
		AlertType:    model.AlertValidationRequired,
		Severity:     model.SeverityMajor,
		Title:        fmt.Sprintf("Correction %s awaits validation", corr.CorrectionID),
		Message:      reason,
		CorrectionID: &corr.CorrectionID,
		TargetRoles:  PrivilegedRoles,
		Details: detailsJSON(map[string]interface{}{
			"action":      corr.Action,
			"environment": corr.Environment,
		}),
	})
}

// PublishEscalation raises the escalation alert. Delivering this alert is
// what makes an ESCALATION correction successful.
func (p *Publisher) PublishEscalation(ctx context.Context, corr *model.Correction) error {
	return p.Publish(ctx, &model.GuardianAlert{
		TenantID:     corr.TenantID,
		AlertType:    model.AlertEscalation,
		Severity:     model.SeverityCritical,
		Title:        fmt.Sprintf("Escalation for correction %s", corr.CorrectionID),
		Message:      corr.ProbableCause,
		CorrectionID: &corr.CorrectionID,
		TargetRoles:  PrivilegedRoles,
	})
}

// PublishRollback raises the rollback alert.
func (p *Publisher) PublishRollback(ctx context.Context, corr *model.Correction, reason string) error {
	return p.Publish(ctx, &model.GuardianAlert{
		TenantID:     corr.TenantID,
		AlertType:    model.AlertRollback,
		Severity:     model.SeverityMajor,
		Title:        fmt.Sprintf("Correction %s rolled back", corr.CorrectionID),
		Message:      reason,
		CorrectionID: &corr.CorrectionID,
		TargetRoles:  PrivilegedRoles,
	})
}

// PublishRollbackFailed raises the alert for a rollback that itself
// failed. This must never be silent.
func (p *Publisher) PublishRollbackFailed(ctx context.Context, corr *model.Correction, cause string) error {
	return p.Publish(ctx, &model.GuardianAlert{
		TenantID:     corr.TenantID,
		AlertType:    model.AlertRollbackFailed,
		Severity:     model.SeverityCritical,
		Title:        fmt.Sprintf("Rollback of correction %s failed", corr.CorrectionID),
		Message:      cause,
		CorrectionID: &corr.CorrectionID,
		TargetRoles:  PrivilegedRoles,
	})
}
