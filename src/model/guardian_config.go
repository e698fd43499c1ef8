package model

import (
	"strings"
	"time"
)

// GuardianConfig holds per-tenant governance settings. One row per tenant,
// created lazily with safe defaults on first use.
type GuardianConfig struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"size:100;uniqueIndex;not null" json:"tenant_id"`

	// No gorm defaults on the flags: a default-tagged bool would silently
	// turn a persisted false back into true on insert. Defaults come from
	// DefaultGuardianConfig.
	DetectionEnabled      bool `json:"detection_enabled"`
	AutoCorrectionEnabled bool `json:"auto_correction_enabled"`

	// Comma-separated environments where automatic correction may run
	AutoCorrectionEnvironments string `gorm:"size:100" json:"auto_correction_environments"`

	MaxAutoCorrectionsPerDay           int `gorm:"default:50" json:"max_auto_corrections_per_day"`
	MaxProductionAutoCorrectionsPerDay int `gorm:"default:5" json:"max_production_auto_corrections_per_day"`

	// Comma-separated severities that raise alerts on detection
	AlertSeverities string `gorm:"size:100" json:"alert_severities"`

	RollbackAlertsEnabled bool `json:"rollback_alerts_enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GuardianConfig) TableName() string { return "guardian_configs" }

// DefaultGuardianConfig returns the safe defaults applied on lazy creation:
// detection on, automatic correction restricted to non-production, and
// alerts for MAJOR and CRITICAL errors.
func DefaultGuardianConfig(tenantID string) *GuardianConfig {
	return &GuardianConfig{
		TenantID:                           tenantID,
		DetectionEnabled:                   true,
		AutoCorrectionEnabled:              true,
		AutoCorrectionEnvironments:         string(EnvSandbox) + "," + string(EnvBeta),
		MaxAutoCorrectionsPerDay:           50,
		MaxProductionAutoCorrectionsPerDay: 5,
		AlertSeverities:                    string(SeverityMajor) + "," + string(SeverityCritical),
		RollbackAlertsEnabled:              true,
	}
}

// AutoCorrectionAllowedIn reports whether automatic correction is enabled
// for env.
func (c *GuardianConfig) AutoCorrectionAllowedIn(env Environment) bool {
	if !c.AutoCorrectionEnabled {
		return false
	}
	for _, part := range strings.Split(c.AutoCorrectionEnvironments, ",") {
		if Environment(strings.TrimSpace(part)) == env {
			return true
		}
	}
	return false
}

// DailyCeiling returns the automatic correction quota for env. Production
// uses the stricter dedicated ceiling.
func (c *GuardianConfig) DailyCeiling(env Environment) int {
	if env == EnvProduction {
		return c.MaxProductionAutoCorrectionsPerDay
	}
	return c.MaxAutoCorrectionsPerDay
}

// AlertsOn reports whether detections of severity sev should raise an
// alert for this tenant.
func (c *GuardianConfig) AlertsOn(sev Severity) bool {
	for _, part := range strings.Split(c.AlertSeverities, ",") {
		if Severity(strings.TrimSpace(part)) == sev {
			return true
		}
	}
	return false
}
