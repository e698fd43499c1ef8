package model

import "testing"

func TestAllowsEnvironment(t *testing.T) {
	rule := CorrectionRule{AllowedEnvironments: "SANDBOX, BETA"}
	if !rule.AllowsEnvironment(EnvSandbox) {
		t.Error("SANDBOX should be allowed")
	}
	if !rule.AllowsEnvironment(EnvBeta) {
		t.Error("BETA should be allowed despite the space after the comma")
	}
	if rule.AllowsEnvironment(EnvProduction) {
		t.Error("PRODUCTION is not in the allow-list")
	}

	// opt-in per environment: an empty list matches nothing
	empty := CorrectionRule{}
	for _, env := range []Environment{EnvSandbox, EnvBeta, EnvProduction} {
		if empty.AllowsEnvironment(env) {
			t.Errorf("empty allow-list should not match %s", env)
		}
	}
}

func TestTestPlan(t *testing.T) {
	defaulted := CorrectionRule{}
	plan := defaulted.TestPlan()
	if len(plan) != 2 || plan[0] != TestTypeScenario || plan[1] != TestTypeRegression {
		t.Fatalf("expected default plan [SCENARIO REGRESSION], got %v", plan)
	}

	custom := CorrectionRule{RequiredTests: "HEALTH, SCENARIO"}
	plan = custom.TestPlan()
	if len(plan) != 2 || plan[0] != TestTypeHealth || plan[1] != TestTypeScenario {
		t.Fatalf("expected [HEALTH SCENARIO], got %v", plan)
	}
}

func TestConditionsRoundTrip(t *testing.T) {
	encoded, err := EncodeConditions([]TriggerCondition{
		{Field: "http_status", Op: OpGreaterThan, Value: "499"},
		{Field: "module", Op: OpEquals, Value: "billing"},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	rule := CorrectionRule{TriggerConditions: encoded}
	conds, err := rule.Conditions()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(conds) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(conds))
	}
	if conds[0].Field != "http_status" || conds[0].Op != OpGreaterThan {
		t.Fatalf("unexpected first condition: %+v", conds[0])
	}

	empty := CorrectionRule{}
	conds, err = empty.Conditions()
	if err != nil || conds != nil {
		t.Fatalf("expected no conditions for empty field, got %v / %v", conds, err)
	}

	broken := CorrectionRule{TriggerConditions: "{not json"}
	if _, err := broken.Conditions(); err == nil {
		t.Fatal("expected error for malformed conditions")
	}
}
