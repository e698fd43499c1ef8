package model

import "testing"

func TestDefaultGuardianConfig(t *testing.T) {
	cfg := DefaultGuardianConfig("tenant-1")

	if !cfg.DetectionEnabled {
		t.Error("detection should default to enabled")
	}
	if cfg.AutoCorrectionAllowedIn(EnvProduction) {
		t.Error("automatic correction must not default to enabled in PRODUCTION")
	}
	if !cfg.AutoCorrectionAllowedIn(EnvSandbox) || !cfg.AutoCorrectionAllowedIn(EnvBeta) {
		t.Error("automatic correction should default to enabled in SANDBOX and BETA")
	}
	if cfg.DailyCeiling(EnvProduction) != 5 {
		t.Errorf("expected production ceiling 5, got %d", cfg.DailyCeiling(EnvProduction))
	}
	if cfg.DailyCeiling(EnvSandbox) != 50 {
		t.Errorf("expected sandbox ceiling 50, got %d", cfg.DailyCeiling(EnvSandbox))
	}
	if !cfg.AlertsOn(SeverityCritical) || !cfg.AlertsOn(SeverityMajor) {
		t.Error("alerts should default to MAJOR and CRITICAL")
	}
	if cfg.AlertsOn(SeverityInfo) {
		t.Error("INFO detections should not raise alerts by default")
	}
}

func TestAutoCorrectionAllowedIn_GlobalSwitch(t *testing.T) {
	cfg := DefaultGuardianConfig("tenant-1")
	cfg.AutoCorrectionEnabled = false

	if cfg.AutoCorrectionAllowedIn(EnvSandbox) {
		t.Error("the global switch must override the environment list")
	}
}
