package model

import "testing"

func baseDetection() ErrorDetection {
	return ErrorDetection{
		TenantID:    "tenant-1",
		ErrorType:   ErrorTypeException,
		ErrorCode:   "E500",
		Module:      "billing",
		Route:       "/v1/invoices",
		Message:     "null pointer in invoice renderer",
		Environment: EnvProduction,
	}
}

func TestComputeFingerprint_StableForSameTuple(t *testing.T) {
	a := baseDetection()
	b := baseDetection()
	// fields outside the dedup tuple must not influence the fingerprint
	b.StackTrace = "at renderer.go:42"
	b.CorrelationID = "other-correlation"
	b.Severity = SeverityCritical

	if a.ComputeFingerprint() != b.ComputeFingerprint() {
		t.Fatal("identical dedup tuples must produce identical fingerprints")
	}
}

func TestComputeFingerprint_DiffersPerTupleField(t *testing.T) {
	base := baseDetection()
	variants := map[string]func(*ErrorDetection){
		"tenant":      func(d *ErrorDetection) { d.TenantID = "tenant-2" },
		"error type":  func(d *ErrorDetection) { d.ErrorType = ErrorTypeTimeout },
		"error code":  func(d *ErrorDetection) { d.ErrorCode = "E504" },
		"module":      func(d *ErrorDetection) { d.Module = "payments" },
		"route":       func(d *ErrorDetection) { d.Route = "/v2/invoices" },
		"message":     func(d *ErrorDetection) { d.Message = "different message" },
		"environment": func(d *ErrorDetection) { d.Environment = EnvSandbox },
	}

	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			d := baseDetection()
			mutate(&d)
			if d.ComputeFingerprint() == base.ComputeFingerprint() {
				t.Fatalf("changing %s should change the fingerprint", name)
			}
		})
	}
}

func TestComputeFingerprint_SeparatorPreventsCollision(t *testing.T) {
	a := baseDetection()
	a.ErrorCode = "AB"
	a.Module = "C"

	b := baseDetection()
	b.ErrorCode = "A"
	b.Module = "BC"

	if a.ComputeFingerprint() == b.ComputeFingerprint() {
		t.Fatal("adjacent tuple fields must not concatenate into the same hash input")
	}
}
