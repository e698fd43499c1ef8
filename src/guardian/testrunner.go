package guardian

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"guardian/src/model"
)

// TestExecutor runs one post-correction test of the given type and reports
// its outcome with an optional detail message.
type TestExecutor interface {
	Run(ctx context.Context, corr *model.Correction, testType model.TestType) (model.TestResult, string)
}

// PassingTestExecutor reports every test as passed. Default for
// deployments without a real test harness wired in.
type PassingTestExecutor struct{}

func (PassingTestExecutor) Run(ctx context.Context, corr *model.Correction, testType model.TestType) (model.TestResult, string) {
	return model.TestPassed, ""
}

// runTests executes the rule's test plan sequentially. Every executed
// outcome is snapshotted. A failing blocking test stops the suite and
// forces rollback; the suite passes only if no blocking test failed.
func (e *Engine) runTests(ctx context.Context, corr *model.Correction, plan []model.TestType) ([]model.CorrectionTestResult, bool) {
	var results []model.CorrectionTestResult
	passed := true

	for _, testType := range plan {
		started := e.now()
		outcome, detail := e.tester.Run(ctx, corr, testType)
		ended := e.now()

		result := model.CorrectionTestResult{
			TestName:         fmt.Sprintf("%s validation for %s", testType, corr.CorrectionID),
			TestType:         testType,
			Result:           outcome,
			DurationMs:       ended.Sub(started).Milliseconds(),
			Blocking:         true,
			TriggersRollback: true,
			ErrorDetail:      detail,
			StartedAt:        started,
			EndedAt:          ended,
		}
		results = append(results, result)

		if result.Failed() {
			logger.WithFields(map[string]interface{}{
				"component":     "TestRunner",
				"correction_id": corr.CorrectionID,
				"test_type":     testType,
				"result":        outcome,
			}).Warn("Post-correction test failed, stopping suite")
			passed = false
			break
		}
	}

	return results, passed
}
