package guardian

import "regexp"

var (
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`)
	digitsPattern = regexp.MustCompile(`\d{8,}`)
)

// ScrubStackTrace removes obvious PII (email addresses, bearer tokens,
// long digit runs) from a stack trace and caps its size before persist.
func ScrubStackTrace(trace string, maxBytes int) string {
	trace = emailPattern.ReplaceAllString(trace, "[email]")
	trace = bearerPattern.ReplaceAllString(trace, "[token]")
	trace = digitsPattern.ReplaceAllString(trace, "[digits]")

	if maxBytes > 0 && len(trace) > maxBytes {
		trace = trace[:maxBytes]
	}
	return trace
}
