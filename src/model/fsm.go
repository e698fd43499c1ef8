package model

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is the sentinel wrapped by every transition
// rejection, so callers can distinguish a client mistake from an internal
// failure.
var ErrInvalidTransition = errors.New("invalid correction transition")

// CorrectionStatus is the state of a correction in the governance state
// machine.
type CorrectionStatus string

const (
	StatusPending    CorrectionStatus = "PENDING"     // created, not yet started
	StatusInProgress CorrectionStatus = "IN_PROGRESS" // action dispatching
	StatusTesting    CorrectionStatus = "TESTING"     // action applied, tests running
	StatusApplied    CorrectionStatus = "APPLIED"     // terminal success
	StatusFailed     CorrectionStatus = "FAILED"      // terminal, the action itself errored
	StatusRolledBack CorrectionStatus = "ROLLED_BACK" // terminal, tests failed or manual rollback
	StatusBlocked    CorrectionStatus = "BLOCKED"     // awaiting human validation
	StatusApproved   CorrectionStatus = "APPROVED"    // human approved, re-enters execution
	StatusRejected   CorrectionStatus = "REJECTED"    // terminal, human rejected
)

// validTransitions maps from-state to allowed to-states. APPLIED is
// terminal except for the explicit rollback edge.
var validTransitions = map[CorrectionStatus]map[CorrectionStatus]bool{
	StatusPending: {
		StatusInProgress: true, // automatic execution starts
		StatusBlocked:    true, // human validation required
	},
	StatusInProgress: {
		StatusTesting: true, // action applied, tests start
		StatusFailed:  true, // the action itself errored
	},
	StatusTesting: {
		StatusApplied:    true, // tests passed
		StatusRolledBack: true, // blocking test failed, auto rollback
		StatusFailed:     true, // test pipeline errored beyond recovery
	},
	StatusBlocked: {
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusApproved: {
		StatusInProgress: true, // approved correction resumes execution
	},
	StatusApplied: {
		StatusRolledBack: true, // explicit rollback of an applied correction
	},
	// Terminal states
	StatusFailed:     {},
	StatusRolledBack: {},
	StatusRejected:   {},
}

// Terminal reports whether s admits no further transition other than the
// APPLIED rollback edge.
func (s CorrectionStatus) Terminal() bool {
	switch s {
	case StatusApplied, StatusFailed, StatusRolledBack, StatusRejected:
		return true
	}
	return false
}

// ValidateTransition checks that from -> to is an edge of the governance
// state machine.
func ValidateTransition(from, to CorrectionStatus) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown correction status: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}
