package model

import (
	"errors"
	"strings"
	"time"
)

// MinJustificationLen is the floor for every free-text justification field
// on a correction. Shorter values are a compliance violation and are
// rejected before anything is persisted.
const MinJustificationLen = 10

var (
	ErrProbableCauseTooShort = errors.New("probable_cause must be at least 10 characters")
	ErrDescriptionTooShort   = errors.New("correction_description must be at least 10 characters")
	ErrImpactTooShort        = errors.New("estimated_impact must be at least 10 characters")
	ErrReversibilityTooShort = errors.New("reversibility_justification must be at least 10 characters")
	ErrMissingAction         = errors.New("correction_action is required")
	ErrInvalidEnvironment    = errors.New("environment is invalid")
)

// Correction is one row of the append-only governance ledger. Rows are
// never deleted; only status/outcome fields and the event trail move
// forward. Historical fields are never rewritten.
type Correction struct {
	ID uint `gorm:"primaryKey" json:"-"`

	// Tenant-scoped, globally unique correction identifier
	CorrectionID string `gorm:"size:100;uniqueIndex;not null" json:"correction_id"`
	TenantID     string `gorm:"size:100;index;not null" json:"tenant_id"`
	Environment  Environment `gorm:"size:20;index" json:"environment"`

	// Originating error; nil for manually requested corrections
	ErrorDetectionID *uint `gorm:"index" json:"error_detection_id,omitempty"`

	// Error classification snapshot at decision time
	ErrorType     ErrorType `gorm:"size:30" json:"error_type,omitempty"`
	ErrorSeverity Severity  `gorm:"size:20" json:"error_severity,omitempty"`
	Module        string    `gorm:"size:100" json:"module,omitempty"`
	Route         string    `gorm:"size:200" json:"route,omitempty"`
	Component     string    `gorm:"size:100" json:"component,omitempty"`
	Function      string    `gorm:"size:100" json:"function,omitempty"`

	// Mandatory auditability fields, each >= MinJustificationLen
	ProbableCause              string `gorm:"type:text;not null" json:"probable_cause"`
	CorrectionDescription      string `gorm:"type:text;not null" json:"correction_description"`
	EstimatedImpact            string `gorm:"type:text;not null" json:"estimated_impact"`
	ReversibilityJustification string `gorm:"type:text;not null" json:"reversibility_justification"`

	Action       CorrectionAction `gorm:"size:30;index" json:"correction_action"`
	ActionConfig string           `gorm:"type:text" json:"action_config,omitempty"`

	RuleID *uint `gorm:"index" json:"rule_id,omitempty"`

	IsReversible      bool   `json:"is_reversible"`
	RollbackProcedure string `gorm:"type:text" json:"rollback_procedure,omitempty"`

	Status                   CorrectionStatus `gorm:"size:20;index" json:"status"`
	RequiresHumanValidation  bool             `json:"requires_human_validation"`
	ExecutedBy               string           `gorm:"size:100" json:"executed_by"`

	// Snapshot of executed post-correction tests
	TestsExecuted        []CorrectionTestResult `gorm:"foreignKey:CorrectionRef;references:ID" json:"tests_executed,omitempty"`
	CorrectionSuccessful *bool                  `json:"correction_successful,omitempty"`

	RolledBack     bool       `gorm:"default:false" json:"rolled_back"`
	RollbackAt     *time.Time `json:"rollback_at,omitempty"`
	RollbackReason string     `gorm:"type:text" json:"rollback_reason,omitempty"`
	RollbackBy     string     `gorm:"size:100" json:"rollback_by,omitempty"`

	ExecutionStartedAt *time.Time `json:"execution_started_at,omitempty"`
	ExecutionEndedAt   *time.Time `json:"execution_ended_at,omitempty"`

	// Optimistic concurrency guard for status transitions
	Version int `gorm:"default:0" json:"version"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Correction) TableName() string { return "corrections" }

// ValidateJustifications enforces the audit floor on every mandatory
// free-text field. Called before insert; a failure here means nothing is
// written.
func (c *Correction) ValidateJustifications() error {
	if len(strings.TrimSpace(c.ProbableCause)) < MinJustificationLen {
		return ErrProbableCauseTooShort
	}
	if len(strings.TrimSpace(c.CorrectionDescription)) < MinJustificationLen {
		return ErrDescriptionTooShort
	}
	if len(strings.TrimSpace(c.EstimatedImpact)) < MinJustificationLen {
		return ErrImpactTooShort
	}
	if len(strings.TrimSpace(c.ReversibilityJustification)) < MinJustificationLen {
		return ErrReversibilityTooShort
	}
	if c.Action == "" {
		return ErrMissingAction
	}
	if !c.Environment.Valid() {
		return ErrInvalidEnvironment
	}
	return nil
}

// CorrectionEvent is one entry of a correction's decision trail. The trail
// is a genuinely append-only event sequence: rows are keyed by correction
// id plus a monotonic sequence number and are never edited or removed.
type CorrectionEvent struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	CorrectionRef uint      `gorm:"index:idx_correction_events_seq,unique;not null" json:"-"`
	Seq           int       `gorm:"index:idx_correction_events_seq,unique;not null" json:"seq"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
	Action        string    `gorm:"size:100;not null" json:"action"`
	By            string    `gorm:"size:100;not null" json:"by"`
	Status        CorrectionStatus `gorm:"size:20" json:"status"`
	Detail        string    `gorm:"type:text" json:"detail,omitempty"`
}

func (CorrectionEvent) TableName() string { return "correction_events" }
