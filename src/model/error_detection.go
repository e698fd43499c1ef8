package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrorDetection represents one logical incident. Repeated occurrences of
// the same error within the deduplication window increment OccurrenceCount
// instead of creating new rows.
type ErrorDetection struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"size:100;index;not null" json:"tenant_id"`

	Severity    Severity    `gorm:"size:20;index" json:"severity"`
	Source      ErrorSource `gorm:"size:30;index" json:"source"`
	ErrorType   ErrorType   `gorm:"size:30;index" json:"error_type"`
	ErrorCode   string      `gorm:"size:100" json:"error_code,omitempty"`
	Environment Environment `gorm:"size:20;index" json:"environment"`

	Message string `gorm:"type:text" json:"message"`

	// Hash of the dedup tuple, indexed for the duplicate lookup
	Fingerprint string `gorm:"size:64;index" json:"-"`

	// Optional localization of the fault
	Module    string `gorm:"size:100;index" json:"module,omitempty"`
	Route     string `gorm:"size:200" json:"route,omitempty"`
	Component string `gorm:"size:100" json:"component,omitempty"`
	Function  string `gorm:"size:100" json:"function,omitempty"`
	File      string `gorm:"size:255" json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`

	// Size-capped and PII-scrubbed before persist
	StackTrace string `gorm:"type:text" json:"stack_trace,omitempty"`

	OccurrenceCount   int       `gorm:"default:1" json:"occurrence_count"`
	FirstOccurrenceAt time.Time `json:"first_occurrence_at"`
	LastOccurrenceAt  time.Time `gorm:"index" json:"last_occurrence_at"`

	CorrelationID string `gorm:"size:100;index" json:"correlation_id,omitempty"`

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	IsProcessed bool `gorm:"default:false" json:"is_processed"`

	// Weak back-reference to the correction that resolved this error
	CorrectionID *string `gorm:"size:100" json:"correction_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComputeFingerprint hashes the deduplication tuple (tenant, error_type,
// error_code, module, route, message, environment). Two reports with the
// same fingerprint inside the dedup window are the same incident.
func (d *ErrorDetection) ComputeFingerprint() string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{
		d.TenantID,
		string(d.ErrorType),
		d.ErrorCode,
		d.Module,
		d.Route,
		d.Message,
		string(d.Environment),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
