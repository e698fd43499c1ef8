package guardian

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"guardian/src/alerting"
	"guardian/src/model"
)

// ErrUnknownAction is returned for action kinds without a registered
// handler. Unknown kinds are denied, never guessed.
var ErrUnknownAction = errors.New("no handler registered for correction action")

// ActionHandler executes one correction action kind. A handler must
// complete or fail within the engine's dispatch timeout; there is no
// cancellation once dispatched.
type ActionHandler interface {
	Execute(ctx context.Context, corr *model.Correction) error
}

// InfraExecutor is the pluggable boundary to real infrastructure. What a
// cache clear or config update technically does downstream is not the
// engine's concern.
type InfraExecutor interface {
	Apply(ctx context.Context, action model.CorrectionAction, actionConfig string) error
	Reverse(ctx context.Context, action model.CorrectionAction, rollbackProcedure string) error
}

// NoopInfraExecutor applies and reverses nothing. Default for deployments
// that run the engine in monitoring mode and for tests.
type NoopInfraExecutor struct{}

func (NoopInfraExecutor) Apply(ctx context.Context, action model.CorrectionAction, actionConfig string) error {
	return nil
}

func (NoopInfraExecutor) Reverse(ctx context.Context, action model.CorrectionAction, rollbackProcedure string) error {
	return nil
}

// ActionDispatcher maps correction action kinds to handlers. Manual-only
// kinds reach their handler only after the pipeline has seen a human
// authorization; the block happens upstream.
type ActionDispatcher struct {
	handlers map[model.CorrectionAction]ActionHandler
}

// NewActionDispatcher wires the built-in handlers: infra-backed kinds
// delegate to exec, MONITORING_ONLY is a no-op, ESCALATION delivers a
// privileged alert.
func NewActionDispatcher(exec InfraExecutor, publisher *alerting.Publisher) *ActionDispatcher {
	d := &ActionDispatcher{handlers: map[model.CorrectionAction]ActionHandler{}}
	infra := &infraHandler{exec: exec}
	d.Register(model.ActionCacheClear, infra)
	d.Register(model.ActionConfigUpdate, infra)
	d.Register(model.ActionWorkaround, infra)
	d.Register(model.ActionServiceRestart, infra)
	d.Register(model.ActionDatabaseRepair, infra)
	d.Register(model.ActionDataMigration, infra)
	d.Register(model.ActionAutoFix, infra)
	d.Register(model.ActionMonitoringOnly, monitoringOnlyHandler{})
	d.Register(model.ActionEscalation, &escalationHandler{publisher: publisher})
	return d
}

// Register installs or replaces the handler for an action kind.
func (d *ActionDispatcher) Register(action model.CorrectionAction, handler ActionHandler) {
	d.handlers[action] = handler
}

// Dispatch runs the handler for the correction's action kind.
func (d *ActionDispatcher) Dispatch(ctx context.Context, corr *model.Correction) error {
	handler, ok := d.handlers[corr.Action]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, corr.Action)
	}
	return handler.Execute(ctx, corr)
}

type infraHandler struct {
	exec InfraExecutor
}

func (h *infraHandler) Execute(ctx context.Context, corr *model.Correction) error {
	logger.WithFields(map[string]interface{}{
		"component":     "ActionExecutor",
		"correction_id": corr.CorrectionID,
		"action":        corr.Action,
	}).Info("Dispatching corrective action")

	return h.exec.Apply(ctx, corr.Action, corr.ActionConfig)
}

type monitoringOnlyHandler struct{}

func (monitoringOnlyHandler) Execute(ctx context.Context, corr *model.Correction) error {
	// Recording the incident is the whole action.
	return nil
}

type escalationHandler struct {
	publisher *alerting.Publisher
}

// Execute delivers the escalation alert; the correction is successful once
// the alert is out.
func (h *escalationHandler) Execute(ctx context.Context, corr *model.Correction) error {
	return h.publisher.PublishEscalation(ctx, corr)
}
