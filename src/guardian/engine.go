package guardian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"guardian/src/alerting"
	"guardian/src/metrics"
	"guardian/src/model"
	"guardian/src/repository"
)

// ErrDetectionDisabled is returned when the guardian subsystem is switched
// off for the tenant. Nothing is persisted in that case.
var ErrDetectionDisabled = errors.New("guardian detection is disabled for this tenant")

// ErrorReport is the inbound contract consumed from the error-producing
// layer: HTTP middleware, explicit API calls and frontend reports.
type ErrorReport struct {
	TenantID    string                 `json:"tenant_id"`
	Severity    model.Severity         `json:"severity"`
	Source      model.ErrorSource      `json:"source"`
	ErrorType   model.ErrorType        `json:"error_type"`
	ErrorCode   string                 `json:"error_code"`
	Environment model.Environment      `json:"environment"`
	Message     string                 `json:"message"`
	Module      string                 `json:"module"`
	Route       string                 `json:"route"`
	Component   string                 `json:"component"`
	Function    string                 `json:"function"`
	File        string                 `json:"file"`
	Line        int                    `json:"line"`
	StackTrace  string                 `json:"stack_trace"`
	// Set for HTTP-layer errors; overrides caller severity/type
	HTTPStatus    int                    `json:"http_status"`
	CorrelationID string                 `json:"correlation_id"`
	Context       map[string]interface{} `json:"context"`
}

// Engine is the correction governance core. It is invoked per
// error-detection event from concurrent request workers; all shared state
// lives in the database.
type Engine struct {
	errors      *repository.ErrorRepository
	corrections *repository.CorrectionRepository
	rules       *repository.RuleRepository
	configs     *repository.ConfigRepository
	publisher   *alerting.Publisher
	dispatcher  *ActionDispatcher
	infra       InfraExecutor
	tester      TestExecutor

	dispatchTimeout time.Duration
	maxStackBytes   int
	now             func() time.Time
}

// NewEngine wires the engine to the production database and the default
// no-op infrastructure executor.
func NewEngine() *Engine {
	publisher := alerting.NewPublisher()
	config := GetConfig()
	infra := NoopInfraExecutor{}
	return &Engine{
		errors:          repository.NewErrorRepository(),
		corrections:     repository.NewCorrectionRepository(),
		rules:           repository.NewRuleRepository(),
		configs:         repository.NewConfigRepository(),
		publisher:       publisher,
		dispatcher:      NewActionDispatcher(infra, publisher),
		infra:           infra,
		tester:          PassingTestExecutor{},
		dispatchTimeout: time.Duration(config.DispatchTimeoutSeconds) * time.Second,
		maxStackBytes:   config.MaxStackTraceBytes,
		now:             time.Now,
	}
}

// NewEngineWith builds an engine on an explicit database connection and
// collaborators. Used by tests and the simulation command.
func NewEngineWith(db *gorm.DB, exec InfraExecutor, tester TestExecutor, notifier *alerting.WebhookNotifier) *Engine {
	alertsRepo := (&repository.AlertRepository{}).WithDB(db)
	publisher := alerting.NewPublisherWith(alertsRepo, notifier)
	if exec == nil {
		exec = NoopInfraExecutor{}
	}
	if tester == nil {
		tester = PassingTestExecutor{}
	}
	return &Engine{
		errors:          (&repository.ErrorRepository{}).WithDB(db),
		corrections:     (&repository.CorrectionRepository{}).WithDB(db),
		rules:           (&repository.RuleRepository{}).WithDB(db),
		configs:         (&repository.ConfigRepository{}).WithDB(db),
		publisher:       publisher,
		dispatcher:      NewActionDispatcher(exec, publisher),
		infra:           exec,
		tester:          tester,
		dispatchTimeout: 30 * time.Second,
		maxStackBytes:   8192,
		now:             time.Now,
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Publisher exposes the alert publisher for collaborators that raise
// alerts outside the pipeline.
func (e *Engine) Publisher() *alerting.Publisher { return e.publisher }

// HandleError ingests one error report. Repeats inside the dedup window
// only increment the existing incident; new incidents enter the governance
// cycle. Governance failures are converted into registry and alert state:
// they never propagate to the reporting caller.
func (e *Engine) HandleError(ctx context.Context, report ErrorReport) (*model.ErrorDetection, error) {
	cfg, err := e.configs.GetOrCreate(ctx, report.TenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.DetectionEnabled {
		return nil, ErrDetectionDisabled
	}

	det, err := e.buildDetection(report)
	if err != nil {
		return nil, err
	}

	now := e.now()
	existing, err := e.errors.FindDuplicate(ctx, det, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := e.errors.IncrementOccurrence(ctx, existing.ID, now); err != nil {
			return nil, err
		}
		existing.OccurrenceCount++
		existing.LastOccurrenceAt = now
		metrics.ObserveDetection(string(existing.Severity), true)
		// pure repeat: no new governance cycle
		return existing, nil
	}

	if err := e.errors.Create(ctx, det); err != nil {
		return nil, err
	}
	metrics.ObserveDetection(string(det.Severity), false)

	if cfg.AlertsOn(det.Severity) {
		if err := e.publisher.PublishCriticalError(ctx, det); err != nil {
			logger.WithError(err).Error("Failed to publish detection alert")
		}
	}

	e.evaluate(ctx, cfg, det)

	return det, nil
}

func (e *Engine) buildDetection(report ErrorReport) (*model.ErrorDetection, error) {
	severity := report.Severity
	errorType := report.ErrorType

	// HTTP-layer reports get their classification derived, not trusted.
	if report.HTTPStatus > 0 {
		severity, errorType = ClassifyHTTPStatus(report.HTTPStatus)
	}
	if !severity.Valid() {
		severity = model.SeverityWarning
	}
	if errorType == "" {
		errorType = model.ErrorTypeUnknown
	}
	if !report.Environment.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidEnvironment, report.Environment)
	}

	source := report.Source
	if source == "" {
		source = model.SourceBackendLog
	}
	correlationID := report.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	contextJSON := ""
	if len(report.Context) > 0 {
		raw, err := jsonMarshalContext(report.Context, report.HTTPStatus)
		if err != nil {
			return nil, err
		}
		contextJSON = raw
	} else if report.HTTPStatus > 0 {
		raw, err := jsonMarshalContext(map[string]interface{}{}, report.HTTPStatus)
		if err != nil {
			return nil, err
		}
		contextJSON = raw
	}

	now := e.now()
	det := &model.ErrorDetection{
		TenantID:          report.TenantID,
		Severity:          severity,
		Source:            source,
		ErrorType:         errorType,
		ErrorCode:         report.ErrorCode,
		Environment:       report.Environment,
		Message:           report.Message,
		Module:            report.Module,
		Route:             report.Route,
		Component:         report.Component,
		Function:          report.Function,
		File:              report.File,
		Line:              report.Line,
		StackTrace:        ScrubStackTrace(report.StackTrace, e.maxStackBytes),
		OccurrenceCount:   1,
		FirstOccurrenceAt: now,
		LastOccurrenceAt:  now,
		CorrelationID:     correlationID,
		Context:           contextJSON,
	}
	det.Fingerprint = det.ComputeFingerprint()
	return det, nil
}

// evaluate runs the governance cycle for a new detection: match a rule,
// pass the guards, write the ledger row, then execute. Every failure path
// ends in registry/alert state, not in a returned error.
func (e *Engine) evaluate(ctx context.Context, cfg *model.GuardianConfig, det *model.ErrorDetection) {
	log := logger.WithFields(map[string]interface{}{
		"component": "Engine",
		"tenant":    det.TenantID,
		"error_id":  det.ID,
		"env":       det.Environment,
	})

	if !cfg.AutoCorrectionAllowedIn(det.Environment) {
		log.Debug("Automatic correction not enabled for environment, cycle ends")
		return
	}

	rules, err := e.rules.ActiveRules(ctx, det.TenantID)
	if err != nil {
		log.WithError(err).Error("Failed to load rules, cycle ends")
		return
	}

	rule := MatchRule(rules, det)
	if rule == nil {
		log.Debug("No rule matched, error remains unresolved")
		return
	}
	log = log.WithField("rule_id", rule.ID)

	now := e.now()
	verdict, err := e.checkGuards(ctx, cfg, rule, det, now)
	if err != nil {
		log.WithError(err).Error("Guard check failed, cycle ends")
		return
	}
	switch verdict {
	case guardCooldown, guardRuleCeiling:
		// throttle, not a governance failure: no alert, no ledger row
		return
	case guardQuota:
		metrics.ObserveQuotaRejection()
		if err := e.publisher.PublishQuotaExceeded(ctx, det.TenantID, det.Environment, cfg.DailyCeiling(det.Environment), det); err != nil {
			log.WithError(err).Error("Failed to publish quota alert")
		}
		return
	}

	corr := e.correctionFromRule(rule, det)
	if err := e.corrections.Create(ctx, corr); err != nil {
		log.WithError(err).Error("Failed to create correction ledger entry, cycle ends")
		return
	}
	if err := e.rules.TouchExecution(ctx, rule.ID, now); err != nil {
		log.WithError(err).Error("Failed to stamp rule execution")
	}
	if err := e.errors.LinkCorrection(ctx, det.ID, corr.CorrectionID); err != nil {
		log.WithError(err).Error("Failed to link detection to correction")
	} else {
		det.CorrectionID = &corr.CorrectionID
		det.IsProcessed = true
	}

	if corr.RequiresHumanValidation {
		e.block(ctx, corr, "Rule requires human validation before execution")
		return
	}

	e.execute(ctx, cfg, corr, rule, "")
}

// correctionFromRule snapshots the error classification and the rule's
// configuration into a new ledger row.
func (e *Engine) correctionFromRule(rule *model.CorrectionRule, det *model.ErrorDetection) *model.Correction {
	ruleID := rule.ID
	return &model.Correction{
		CorrectionID:     uuid.NewString(),
		TenantID:         det.TenantID,
		Environment:      det.Environment,
		ErrorDetectionID: &det.ID,
		ErrorType:        det.ErrorType,
		ErrorSeverity:    det.Severity,
		Module:           det.Module,
		Route:            det.Route,
		Component:        det.Component,
		Function:         det.Function,

		ProbableCause: fmt.Sprintf("%s error in %s: %s",
			det.ErrorType, nonEmpty(det.Module, "unknown module"), truncate(det.Message, 500)),
		CorrectionDescription: fmt.Sprintf("Rule %q applies action %s: %s",
			rule.Name, rule.Action, nonEmpty(rule.Description, "no further description")),
		EstimatedImpact: fmt.Sprintf("Scoped to %s in %s; risk level %s",
			nonEmpty(det.Module, "the affected service"), det.Environment, rule.RiskLevel),
		ReversibilityJustification: reversibilityNote(rule),

		Action:       rule.Action,
		ActionConfig: rule.ActionConfig,
		RuleID:       &ruleID,

		IsReversible:            rule.IsReversible,
		RollbackProcedure:       fmt.Sprintf("Reverse %s using the recorded action configuration", rule.Action),
		Status:                  model.StatusPending,
		RequiresHumanValidation: rule.RequiresHumanValidation,
		ExecutedBy:              model.ExecutedByGuardian,
	}
}

func reversibilityNote(rule *model.CorrectionRule) string {
	if rule.IsReversible {
		return fmt.Sprintf("Action %s is reversible; rollback restores the prior state", rule.Action)
	}
	return fmt.Sprintf("Action %s is not reversible; failures surface to operators for manual repair", rule.Action)
}

// block parks a correction for human validation and raises the alert.
func (e *Engine) block(ctx context.Context, corr *model.Correction, reason string) {
	if err := e.corrections.Transition(ctx, corr, model.StatusBlocked, "blocked", model.ExecutedByGuardian, reason, nil); err != nil {
		logger.WithError(err).WithField("correction_id", corr.CorrectionID).
			Error("Failed to block correction")
		return
	}
	if err := e.publisher.PublishValidationRequired(ctx, corr, reason); err != nil {
		logger.WithError(err).Error("Failed to publish validation alert")
	}
}

// execute runs the action and test pipeline for a correction whose status
// admits execution (PENDING or APPROVED). approvedBy is the human who
// authorized a blocked correction; it is empty on the automatic path.
func (e *Engine) execute(ctx context.Context, cfg *model.GuardianConfig, corr *model.Correction, rule *model.CorrectionRule, approvedBy string) {
	log := logger.WithFields(map[string]interface{}{
		"component":     "Engine",
		"correction_id": corr.CorrectionID,
		"action":        corr.Action,
	})

	// Hard safety ceiling: manual-only actions never run automatically,
	// regardless of the rule's own validation flag.
	if corr.Action.ManualOnly() && approvedBy == "" {
		e.block(ctx, corr, fmt.Sprintf("Action %s requires manual execution", corr.Action))
		return
	}

	actor := model.ExecutedByGuardian
	if approvedBy != "" {
		actor = approvedBy
	}

	started := e.now()
	startUpdates := map[string]interface{}{"execution_started_at": started}
	if approvedBy != "" {
		// a human-authorized run is attributed to the approver, keeping
		// it out of the automatic quota count
		startUpdates["executed_by"] = actor
	}
	if err := e.corrections.Transition(ctx, corr, model.StatusInProgress, "execution_started", actor, "", startUpdates); err != nil {
		log.WithError(err).Error("Failed to start correction execution")
		return
	}
	corr.ExecutedBy = actor

	if err := e.dispatch(ctx, corr); err != nil {
		ended := e.now()
		log.WithError(err).Error("Corrective action failed")
		successful := false
		if terr := e.corrections.Transition(ctx, corr, model.StatusFailed, "execution_failed", actor, err.Error(),
			map[string]interface{}{
				"execution_ended_at":    ended,
				"correction_successful": successful,
			}); terr != nil {
			log.WithError(terr).Error("Failed to record action failure")
		}
		e.recordRuleOutcome(ctx, rule, false)
		metrics.ObserveCorrection(string(model.StatusFailed), ended.Sub(started))
		return
	}

	if err := e.corrections.Transition(ctx, corr, model.StatusTesting, "tests_started", actor, "", nil); err != nil {
		log.WithError(err).Error("Failed to enter testing")
		return
	}

	plan := []model.TestType{model.TestTypeScenario, model.TestTypeRegression}
	if rule != nil {
		plan = rule.TestPlan()
	}
	results, passed := e.runTests(ctx, corr, plan)
	if err := e.corrections.SaveTestResults(ctx, corr, results); err != nil {
		log.WithError(err).Error("Failed to snapshot test results")
	}

	ended := e.now()
	if passed {
		successful := true
		if err := e.corrections.Transition(ctx, corr, model.StatusApplied, "applied", actor,
			fmt.Sprintf("%d tests passed", len(results)),
			map[string]interface{}{
				"execution_ended_at":    ended,
				"correction_successful": successful,
			}); err != nil {
			log.WithError(err).Error("Failed to mark correction applied")
			return
		}
		e.recordRuleOutcome(ctx, rule, true)
		metrics.ObserveCorrection(string(model.StatusApplied), ended.Sub(started))
		log.Info("Correction applied")
		return
	}

	e.rollbackAfterTests(ctx, cfg, corr, rule, actor, started)
}

// dispatch runs the action handler under the bounded dispatch timeout. A
// hang counts as failure; the action itself is never cancelled.
func (e *Engine) dispatch(ctx context.Context, corr *model.Correction) error {
	dispatchCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.dispatcher.Dispatch(dispatchCtx, corr)
	}()

	select {
	case err := <-done:
		return err
	case <-dispatchCtx.Done():
		return fmt.Errorf("action %s timed out after %s", corr.Action, e.dispatchTimeout)
	}
}

func (e *Engine) recordRuleOutcome(ctx context.Context, rule *model.CorrectionRule, success bool) {
	if rule == nil {
		return
	}
	if err := e.rules.RecordOutcome(ctx, rule.ID, success); err != nil {
		logger.WithError(err).WithField("rule_id", rule.ID).
			Error("Failed to record rule outcome")
	}
}

// jsonMarshalContext serializes the report context, folding the HTTP
// status in so rule conditions can match on it.
func jsonMarshalContext(contextMap map[string]interface{}, httpStatus int) (string, error) {
	merged := make(map[string]interface{}, len(contextMap)+1)
	for k, v := range contextMap {
		merged[k] = v
	}
	if httpStatus > 0 {
		merged["http_status"] = httpStatus
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
