package guardian

import "guardian/src/model"

// ClassifyHTTPStatus derives severity and error type from an HTTP status
// code. HTTP-layer reports never get to choose their own classification:
// deriving it here prevents caller-controlled severity inflation or
// deflation.
func ClassifyHTTPStatus(status int) (model.Severity, model.ErrorType) {
	switch {
	case status >= 500:
		return model.SeverityCritical, model.ErrorTypeException
	case status == 401 || status == 403:
		return model.SeverityMajor, model.ErrorTypeAuthentication
	case status == 429:
		return model.SeverityWarning, model.ErrorTypeRateLimit
	case status == 408:
		return model.SeverityWarning, model.ErrorTypeTimeout
	case status == 404:
		return model.SeverityMinor, model.ErrorTypeValidation
	case status >= 400:
		return model.SeverityWarning, model.ErrorTypeValidation
	default:
		return model.SeverityInfo, model.ErrorTypeUnknown
	}
}
