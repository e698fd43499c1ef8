package guardian

import (
	"context"
	"errors"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"guardian/src/model"
)

var (
	// ErrAlreadyDecided is returned when approving or rejecting a
	// correction that is no longer awaiting validation.
	ErrAlreadyDecided = errors.New("correction has already been decided")
	// ErrUserRequired is returned when a human-only operation carries no
	// user identity. Approval, rejection, manual requests and manual
	// rollbacks must never run as GUARDIAN: they would slip past the
	// manual-execution authorization and pollute the automatic quota.
	ErrUserRequired = errors.New("a user identity is required for this operation")
)

// requireUser rejects the system identity on human-only operations.
func requireUser(by string) error {
	if by == "" || by == model.ExecutedByGuardian {
		return ErrUserRequired
	}
	return nil
}

// Approve authorizes a blocked correction. The pipeline re-enters at
// action execution under the approver's identity; for manual-only actions
// the approval is the manual execution authorization.
func (e *Engine) Approve(ctx context.Context, tenantID, correctionID, by string) (*model.Correction, error) {
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
	if corr.Status != model.StatusBlocked {
		return nil, ErrAlreadyDecided
	}

	if err := e.corrections.Transition(ctx, corr, model.StatusApproved, "approved", by, "", nil); err != nil {
		return nil, err
	}

	var rule *model.CorrectionRule
	if corr.RuleID != nil {
		rule, err = e.rules.FindByID(ctx, tenantID, *corr.RuleID)
		if err != nil {
			logger.WithError(err).WithField("correction_id", corr.CorrectionID).
				Error("Failed to load rule for approved correction")
		}
	}

	cfg, err := e.configs.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	e.execute(ctx, cfg, corr, rule, by)
	return corr, nil
}

// Reject terminally refuses a blocked correction.
func (e *Engine) Reject(ctx context.Context, tenantID, correctionID, by, reason string) (*model.Correction, error) {
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
	if corr.Status != model.StatusBlocked {
		return nil, ErrAlreadyDecided
	}

	if reason == "" {
		reason = "rejected by validator"
	}
	if err := e.corrections.Transition(ctx, corr, model.StatusRejected, "rejected", by, reason, nil); err != nil {
		return nil, err
	}
	return corr, nil
}

// ManualCorrectionInput is a human-initiated correction request. The
// justification floor applies exactly as on the automatic path.
type ManualCorrectionInput struct {
	TenantID    string            `json:"tenant_id"`
	Environment model.Environment `json:"environment"`

	ProbableCause              string `json:"probable_cause"`
	CorrectionDescription      string `json:"correction_description"`
	EstimatedImpact            string `json:"estimated_impact"`
	ReversibilityJustification string `json:"reversibility_justification"`

	Action       model.CorrectionAction `json:"correction_action"`
	ActionConfig string                 `json:"action_config"`

	IsReversible      bool   `json:"is_reversible"`
	RollbackProcedure string `json:"rollback_procedure"`

	ErrorDetectionID *uint `json:"error_detection_id"`
}

// RequestCorrection creates and immediately executes a human-initiated
// correction. The requesting user has already authorized the action, so
// manual-only kinds run here under their identity.
func (e *Engine) RequestCorrection(ctx context.Context, input ManualCorrectionInput, by string) (*model.Correction, error) {
	if err := requireUser(by); err != nil {
		return nil, err
	}
	corr := &model.Correction{
		CorrectionID:     uuid.NewString(),
		TenantID:         input.TenantID,
		Environment:      input.Environment,
		ErrorDetectionID: input.ErrorDetectionID,

		ProbableCause:              input.ProbableCause,
		CorrectionDescription:      input.CorrectionDescription,
		EstimatedImpact:            input.EstimatedImpact,
		ReversibilityJustification: input.ReversibilityJustification,

		Action:       input.Action,
		ActionConfig: input.ActionConfig,

		IsReversible:      input.IsReversible,
		RollbackProcedure: input.RollbackProcedure,
		Status:            model.StatusPending,
		ExecutedBy:        by,
	}

	if input.ErrorDetectionID != nil {
		det, err := e.errors.FindByID(ctx, input.TenantID, *input.ErrorDetectionID)
		if err != nil {
			return nil, err
		}
		if det != nil {
			corr.ErrorType = det.ErrorType
			corr.ErrorSeverity = det.Severity
			corr.Module = det.Module
			corr.Route = det.Route
			corr.Component = det.Component
			corr.Function = det.Function
		}
	}

	if err := e.corrections.Create(ctx, corr); err != nil {
		return nil, err
	}

	if input.ErrorDetectionID != nil {
		if err := e.errors.LinkCorrection(ctx, *input.ErrorDetectionID, corr.CorrectionID); err != nil {
			logger.WithError(err).Error("Failed to link detection to manual correction")
		}
	}

	cfg, err := e.configs.GetOrCreate(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}

	e.execute(ctx, cfg, corr, nil, by)
	return corr, nil
}
