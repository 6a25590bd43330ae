package types

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// ExpectationSet is the set of outcomes considered acceptable for a test.
// The zero value is the empty set.
type ExpectationSet uint8

func bit(o Outcome) ExpectationSet {
	if o == 0 || o > OutcomeCrash {
		return 0
	}
	return 1 << (o - 1)
}

// NewExpectationSet builds a set from the given outcomes
func NewExpectationSet(outcomes ...Outcome) ExpectationSet {
	var s ExpectationSet
	for _, o := range outcomes {
		s |= bit(o)
	}
	return s
}

// ExpectPass is the default expectation for a test with no declared rule.
var ExpectPass = NewExpectationSet(OutcomePass)

func (s ExpectationSet) Contains(o Outcome) bool {
	b := bit(o)
	return b != 0 && s&b != 0
}

// ContainsAny reports whether any of the outcomes is in the set.
func (s ExpectationSet) ContainsAny(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if s.Contains(o) {
			return true
		}
	}
	return false
}

func (s ExpectationSet) With(o Outcome) ExpectationSet {
	return s | bit(o)
}

func (s ExpectationSet) Without(o Outcome) ExpectationSet {
	return s &^ bit(o)
}

func (s ExpectationSet) Union(other ExpectationSet) ExpectationSet {
	return s | other
}

func (s ExpectationSet) IsEmpty() bool {
	return s == 0
}

// Only reports whether the set is exactly {o}.
func (s ExpectationSet) Only(o Outcome) bool {
	return s != 0 && s == bit(o)
}

// Outcomes returns the members in canonical order.
func (s ExpectationSet) Outcomes() []Outcome {
	var out []Outcome
	for _, o := range AllOutcomes {
		if s.Contains(o) {
			out = append(out, o)
		}
	}
	return out
}

// String serializes the set as space-joined symbols, e.g. "FAIL SKIP".
func (s ExpectationSet) String() string {
	return Outcomes(s.Outcomes()).String()
}

// ParseExpectationSet parses a space-joined list of symbols.
func ParseExpectationSet(s string) (ExpectationSet, error) {
	outcomes, err := ParseOutcomes(s)
	if err != nil {
		return 0, err
	}
	return NewExpectationSet(outcomes...), nil
}

// UnmarshalYAML accepts either a sequence of symbols or a single space-joined string.
func (s *ExpectationSet) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	if value.Kind == yaml.SequenceNode {
		if err := value.Decode(&raw); err != nil {
			return err
		}
	} else {
		var joined string
		if err := value.Decode(&joined); err != nil {
			return err
		}
		raw = []string{joined}
	}
	parsed, err := ParseExpectationSet(strings.Join(raw, " "))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
