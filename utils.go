package bat

import (
	"strings"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a short marker for a test verdict
func getResultString(verdict types.Verdict) string {
	switch verdict {
	case types.VerdictPass:
		return "✓ pass"
	case types.VerdictFlaky:
		return "~ flaky"
	case types.VerdictSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// keyDiagnosticMarkers are searched in order; the line holding the first hit
// is the one shown in the results table.
var keyDiagnosticMarkers = []string{
	"runtime error:",
	"page reported",
	"browser crashed",
	"deadline exceeded",
}

// extractKeyDiagnostic picks the most pertinent line of an attempt diagnostic for display
func extractKeyDiagnostic(diag string) string {
	diag = strings.TrimSpace(diag)
	if diag == "" {
		return ""
	}
	for _, marker := range keyDiagnosticMarkers {
		if idx := strings.Index(diag, marker); idx != -1 {
			line := diag[idx:]
			if nl := strings.IndexByte(line, '\n'); nl != -1 {
				line = line[:nl]
			}
			return truncate(line)
		}
	}
	if nl := strings.IndexByte(diag, '\n'); nl != -1 {
		diag = diag[:nl]
	}
	return truncate(diag)
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) > 80 {
		return string(runes[:77]) + "..."
	}
	return s
}

// lastDiagnostic returns the diagnostic of the latest attempt that left one.
func lastDiagnostic(rec types.TestOutcomeRecord) string {
	for i := len(rec.Attempts) - 1; i >= 0; i-- {
		if rec.Attempts[i].Diagnostic != "" {
			return rec.Attempts[i].Diagnostic
		}
	}
	return ""
}
