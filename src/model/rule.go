package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ConditionOp is the comparison operator of one typed trigger condition.
type ConditionOp string

const (
	OpEquals      ConditionOp = "equals"
	OpContains    ConditionOp = "contains"
	OpGreaterThan ConditionOp = "greater_than"
)

// TriggerCondition is one typed predicate matched against a named field of
// the error or its context map.
type TriggerCondition struct {
	Field string      `json:"field"`
	Op    ConditionOp `json:"op"`
	Value string      `json:"value"`
}

// CorrectionRule is a governance policy: when its trigger predicate matches
// a new error, the configured corrective action may fire, subject to quota
// and cooldown.
type CorrectionRule struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"size:100;index;not null" json:"tenant_id"`

	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Trigger predicate; empty trigger fields match anything
	TriggerErrorType ErrorType `gorm:"size:30" json:"trigger_error_type,omitempty"`
	TriggerErrorCode string    `gorm:"size:100" json:"trigger_error_code,omitempty"`
	TriggerModule    string    `gorm:"size:100" json:"trigger_module,omitempty"`
	MinSeverity      Severity  `gorm:"size:20" json:"min_severity,omitempty"`

	// Typed custom conditions, stored as JSON
	TriggerConditions string `gorm:"type:text" json:"trigger_conditions,omitempty"`

	Action       CorrectionAction `gorm:"size:30;not null" json:"correction_action"`
	ActionConfig string           `gorm:"type:text" json:"action_config,omitempty"`

	// Comma-separated environments the rule may fire in
	AllowedEnvironments string `gorm:"size:100" json:"allowed_environments"`

	MaxPerHour      int `gorm:"default:0" json:"max_corrections_per_hour"`
	CooldownSeconds int `gorm:"default:0" json:"cooldown_seconds"`

	RequiresHumanValidation bool      `json:"requires_human_validation"`
	RiskLevel               RiskLevel `gorm:"size:20" json:"risk_level"`
	IsReversible            bool      `json:"is_reversible"`

	// Ordered list of post-correction test types, comma-separated
	RequiredTests string `gorm:"size:200" json:"required_tests"`

	ExecutionCount int        `gorm:"default:0" json:"execution_count"`
	SuccessCount   int        `gorm:"default:0" json:"success_count"`
	FailureCount   int        `gorm:"default:0" json:"failure_count"`
	LastExecutionAt *time.Time `json:"last_execution_at,omitempty"`

	Version      int  `gorm:"default:1" json:"version"`
	IsSystemRule bool `json:"is_system_rule"`
	// No gorm default here: a default-tagged bool stores false as true on
	// insert. Creators set the flag explicitly.
	IsActive bool `gorm:"index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CorrectionRule) TableName() string { return "correction_rules" }

// AllowsEnvironment reports whether the rule may fire in env. An empty
// allow-list matches nothing: rules must opt in to every environment.
func (r *CorrectionRule) AllowsEnvironment(env Environment) bool {
	for _, part := range strings.Split(r.AllowedEnvironments, ",") {
		if Environment(strings.TrimSpace(part)) == env {
			return true
		}
	}
	return false
}

// Conditions decodes the typed trigger conditions. A missing or empty
// field yields no conditions.
func (r *CorrectionRule) Conditions() ([]TriggerCondition, error) {
	if strings.TrimSpace(r.TriggerConditions) == "" {
		return nil, nil
	}
	var conds []TriggerCondition
	if err := json.Unmarshal([]byte(r.TriggerConditions), &conds); err != nil {
		return nil, err
	}
	return conds, nil
}

// TestPlan returns the ordered post-correction test types, defaulting to a
// scenario replay followed by a regression check.
func (r *CorrectionRule) TestPlan() []TestType {
	raw := strings.TrimSpace(r.RequiredTests)
	if raw == "" {
		return []TestType{TestTypeScenario, TestTypeRegression}
	}
	var plan []TestType
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			plan = append(plan, TestType(t))
		}
	}
	return plan
}

// EncodeConditions is a helper for admin handlers and seeds.
func EncodeConditions(conds []TriggerCondition) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(conds)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
