package model

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    CorrectionStatus
		to      CorrectionStatus
		wantErr bool
	}{
		{"pending to in_progress", StatusPending, StatusInProgress, false},
		{"pending to blocked", StatusPending, StatusBlocked, false},
		{"pending to applied skips execution", StatusPending, StatusApplied, true},
		{"in_progress to testing", StatusInProgress, StatusTesting, false},
		{"in_progress to failed", StatusInProgress, StatusFailed, false},
		{"in_progress to applied skips testing", StatusInProgress, StatusApplied, true},
		{"testing to applied", StatusTesting, StatusApplied, false},
		{"testing to rolled_back", StatusTesting, StatusRolledBack, false},
		{"testing to failed", StatusTesting, StatusFailed, false},
		{"blocked to approved", StatusBlocked, StatusApproved, false},
		{"blocked to rejected", StatusBlocked, StatusRejected, false},
		{"blocked to in_progress without approval", StatusBlocked, StatusInProgress, true},
		{"approved resumes execution", StatusApproved, StatusInProgress, false},
		{"approved to applied directly", StatusApproved, StatusApplied, true},
		{"applied to rolled_back", StatusApplied, StatusRolledBack, false},
		{"applied to in_progress", StatusApplied, StatusInProgress, true},
		{"rolled_back is terminal", StatusRolledBack, StatusApplied, true},
		{"rolled_back cannot re-enter testing", StatusRolledBack, StatusTesting, true},
		{"failed is terminal", StatusFailed, StatusInProgress, true},
		{"rejected is terminal", StatusRejected, StatusApproved, true},
		{"unknown from status", CorrectionStatus("BOGUS"), StatusApplied, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr && err == nil {
				t.Fatalf("expected transition %s -> %s to be rejected", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected transition %s -> %s to be allowed, got %v", tt.from, tt.to, err)
			}
			// rejections on known statuses carry the sentinel so callers
			// can classify them
			if tt.wantErr && tt.from != CorrectionStatus("BOGUS") && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition for %s -> %s, got %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	terminals := []CorrectionStatus{StatusApplied, StatusFailed, StatusRolledBack, StatusRejected}
	for _, s := range terminals {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	live := []CorrectionStatus{StatusPending, StatusInProgress, StatusTesting, StatusBlocked, StatusApproved}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
