package model

import "time"

// CorrectionTestResult is the outcome of one post-correction test executed
// for a correction. A blocking test with TriggersRollback set that fails is
// sufficient to force rollback of the correction.
type CorrectionTestResult struct {
	ID            uint `gorm:"primaryKey" json:"-"`
	CorrectionRef uint `gorm:"index;not null" json:"-"`

	TestName string   `gorm:"size:200" json:"test_name"`
	TestType TestType `gorm:"size:30" json:"test_type"`

	Result     TestResult `gorm:"size:20" json:"result"`
	DurationMs int64      `json:"duration_ms"`

	Blocking         bool `json:"blocking"`
	TriggersRollback bool `json:"triggers_rollback"`

	ErrorDetail string `gorm:"type:text" json:"error_detail,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

func (CorrectionTestResult) TableName() string { return "correction_test_results" }

// Failed reports whether the test outcome counts against the correction.
func (t *CorrectionTestResult) Failed() bool {
	return t.Result == TestFailed || t.Result == TestErrored
}
