package types

import (
	"fmt"
	"strings"
)

// Outcome is the result symbol of a single attempt
type Outcome uint8

const (
	OutcomePass Outcome = iota + 1
	OutcomeFail
	OutcomeSkip
	OutcomeTimeout
	OutcomeCrash
)

// AllOutcomes lists every outcome in canonical order.
var AllOutcomes = []Outcome{OutcomePass, OutcomeFail, OutcomeSkip, OutcomeTimeout, OutcomeCrash}

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "PASS"
	case OutcomeFail:
		return "FAIL"
	case OutcomeSkip:
		return "SKIP"
	case OutcomeTimeout:
		return "TIMEOUT"
	case OutcomeCrash:
		return "CRASH"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// IsFailure reports whether the outcome belongs to the failure class that
// retry-only-on-failure policies act on.
func (o Outcome) IsFailure() bool {
	return o == OutcomeFail || o == OutcomeCrash
}

// ParseOutcome converts a symbol such as "PASS" into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return OutcomePass, nil
	case "FAIL":
		return OutcomeFail, nil
	case "SKIP":
		return OutcomeSkip, nil
	case "TIMEOUT":
		return OutcomeTimeout, nil
	case "CRASH":
		return OutcomeCrash, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// MarshalText encodes the outcome as its symbol
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	parsed, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Outcomes is the ordered sequence of attempt outcomes for one test
type Outcomes []Outcome

// String joins the sequence with single spaces, e.g. "FAIL FAIL PASS".
func (seq Outcomes) String() string {
	parts := make([]string, len(seq))
	for i, o := range seq {
		parts[i] = o.String()
	}
	return strings.Join(parts, " ")
}

// Last returns the most recent outcome, or false if there is none.
func (seq Outcomes) Last() (Outcome, bool) {
	if len(seq) == 0 {
		return 0, false
	}
	return seq[len(seq)-1], true
}

// ParseOutcomes splits a space-joined sequence.
func ParseOutcomes(s string) (Outcomes, error) {
	fields := strings.Fields(s)
	out := make(Outcomes, 0, len(fields))
	for _, f := range fields {
		o, err := ParseOutcome(f)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
