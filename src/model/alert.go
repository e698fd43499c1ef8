package model

import "time"

// GuardianAlert is a persisted notification raised by the governance
// engine: critical errors, quota breaches, validation requests, escalations
// and rollbacks. Alerts move unread -> acknowledged -> resolved; each
// transition is stamped with actor and timestamp.
type GuardianAlert struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"size:100;index;not null" json:"tenant_id"`

	AlertType AlertType `gorm:"size:30;index" json:"alert_type"`
	Severity  Severity  `gorm:"size:20;index" json:"severity"`

	Title   string `gorm:"size:255" json:"title"`
	Message string `gorm:"type:text" json:"message"`
	Details string `gorm:"type:text" json:"details,omitempty"`

	ErrorDetectionID *uint   `gorm:"index" json:"error_detection_id,omitempty"`
	CorrectionID     *string `gorm:"size:100;index" json:"correction_id,omitempty"`

	// Comma-separated role names and explicit user ids
	TargetRoles string `gorm:"size:255" json:"target_roles,omitempty"`
	TargetUsers string `gorm:"size:255" json:"target_users,omitempty"`

	IsRead         bool       `gorm:"default:false" json:"is_read"`
	ReadBy         string     `gorm:"size:100" json:"read_by,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	IsAcknowledged bool       `gorm:"default:false" json:"is_acknowledged"`
	AcknowledgedBy string     `gorm:"size:100" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	IsResolved     bool       `gorm:"default:false" json:"is_resolved"`
	ResolvedBy     string     `gorm:"size:100" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GuardianAlert) TableName() string { return "guardian_alerts" }
