package model

// Severity classifies how serious a detected error is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

// severityRank orders severities for threshold comparisons.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityMinor:    2,
	SeverityMajor:    3,
	SeverityCritical: 4,
}

// AtLeast reports whether s is equal to or more severe than min.
// Unknown severities rank below INFO so they never satisfy a threshold.
func (s Severity) AtLeast(min Severity) bool {
	sr, ok := severityRank[s]
	if !ok {
		return false
	}
	mr, ok := severityRank[min]
	if !ok {
		return false
	}
	return sr >= mr
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// ErrorSource identifies where an error report originated.
type ErrorSource string

const (
	SourceAPIError    ErrorSource = "API_ERROR"
	SourceBackendLog  ErrorSource = "BACKEND_LOG"
	SourceFrontendLog ErrorSource = "FRONTEND_LOG"
	SourceMonitoring  ErrorSource = "MONITORING"
	SourceManual      ErrorSource = "MANUAL"
)

// ErrorType classifies the nature of a detected error.
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION"
	ErrorTypeAuthorization  ErrorType = "AUTHORIZATION"
	ErrorTypeTimeout        ErrorType = "TIMEOUT"
	ErrorTypeDataIntegrity  ErrorType = "DATA_INTEGRITY"
	ErrorTypeRateLimit      ErrorType = "RATE_LIMIT"
	ErrorTypeException      ErrorType = "EXCEPTION"
	ErrorTypeNetwork        ErrorType = "NETWORK"
	ErrorTypeDependency     ErrorType = "DEPENDENCY"
	ErrorTypeDatabase       ErrorType = "DATABASE"
	ErrorTypeUnknown        ErrorType = "UNKNOWN"
)

// Environment identifies the deployment target an error belongs to.
type Environment string

const (
	EnvSandbox    Environment = "SANDBOX"
	EnvBeta       Environment = "BETA"
	EnvProduction Environment = "PRODUCTION"
)

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	switch e {
	case EnvSandbox, EnvBeta, EnvProduction:
		return true
	}
	return false
}

// CorrectionAction enumerates the corrective action kinds the engine can govern.
type CorrectionAction string

const (
	ActionCacheClear     CorrectionAction = "CACHE_CLEAR"
	ActionConfigUpdate   CorrectionAction = "CONFIG_UPDATE"
	ActionMonitoringOnly CorrectionAction = "MONITORING_ONLY"
	ActionWorkaround     CorrectionAction = "WORKAROUND"
	ActionEscalation     CorrectionAction = "ESCALATION"
	ActionServiceRestart CorrectionAction = "SERVICE_RESTART"
	ActionDatabaseRepair CorrectionAction = "DATABASE_REPAIR"
	ActionDataMigration  CorrectionAction = "DATA_MIGRATION"
	ActionAutoFix        CorrectionAction = "AUTO_FIX"
)

// manualOnlyActions can never run automatically. The executor blocks them
// for human execution regardless of rule configuration.
var manualOnlyActions = map[CorrectionAction]bool{
	ActionServiceRestart: true,
	ActionDatabaseRepair: true,
	ActionDataMigration:  true,
	ActionAutoFix:        true,
}

// ManualOnly reports whether the action requires human execution.
func (a CorrectionAction) ManualOnly() bool {
	return manualOnlyActions[a]
}

// RiskLevel grades how dangerous a correction rule is considered.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// TestResult is the outcome of one post-correction test.
type TestResult string

const (
	TestPassed  TestResult = "PASSED"
	TestFailed  TestResult = "FAILED"
	TestErrored TestResult = "ERROR"
	TestSkipped TestResult = "SKIPPED"
)

// TestType names a post-correction test strategy.
type TestType string

const (
	TestTypeScenario   TestType = "SCENARIO"
	TestTypeRegression TestType = "REGRESSION"
	TestTypeHealth     TestType = "HEALTH"
)

// AlertType classifies guardian notifications.
type AlertType string

const (
	AlertCriticalError      AlertType = "CRITICAL_ERROR"
	AlertQuotaExceeded      AlertType = "QUOTA_EXCEEDED"
	AlertValidationRequired AlertType = "VALIDATION_REQUIRED"
	AlertEscalation         AlertType = "ESCALATION"
	AlertRollback           AlertType = "ROLLBACK"
	AlertRollbackFailed     AlertType = "ROLLBACK_FAILED"
)

// ExecutedByGuardian marks corrections executed by the engine itself, as
// opposed to "user:<id>" for human-initiated ones.
const ExecutedByGuardian = "GUARDIAN"
