package expectations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

var (
	pass    = types.OutcomePass
	fail    = types.OutcomeFail
	skip    = types.OutcomeSkip
	timeout = types.OutcomeTimeout
	crash   = types.OutcomeCrash
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		expected       types.ExpectationSet
		observed       types.Outcomes
		wantActual     string
		wantRegression bool
	}{
		{
			name:       "pass first try",
			expected:   types.ExpectPass,
			observed:   types.Outcomes{pass},
			wantActual: "PASS",
		},
		{
			name:       "flaky pass",
			expected:   types.ExpectPass,
			observed:   types.Outcomes{fail, fail, pass},
			wantActual: "FAIL FAIL PASS",
		},
		{
			name:           "unexpected failure",
			expected:       types.ExpectPass,
			observed:       types.Outcomes{fail, fail},
			wantActual:     "FAIL FAIL",
			wantRegression: true,
		},
		{
			name:       "expected failure",
			expected:   types.NewExpectationSet(fail),
			observed:   types.Outcomes{fail},
			wantActual: "FAIL",
		},
		{
			name:       "expected skip",
			expected:   types.NewExpectationSet(skip),
			observed:   types.Outcomes{skip},
			wantActual: "SKIP",
		},
		{
			name:           "crash never matches pass",
			expected:       types.ExpectPass,
			observed:       types.Outcomes{crash, timeout},
			wantActual:     "CRASH TIMEOUT",
			wantRegression: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := Classify("a/b", tt.expected, tt.observed)
			assert.Equal(t, "a/b", record.Name)
			assert.Equal(t, tt.expected, record.Expected)
			assert.Equal(t, tt.wantActual, record.Actual.String())
			assert.Equal(t, tt.wantRegression, record.IsRegression)
		})
	}
}

func TestClassifyCopiesObserved(t *testing.T) {
	observed := types.Outcomes{fail}
	record := Classify("x", types.ExpectPass, observed)
	observed[0] = pass
	assert.Equal(t, "FAIL", record.Actual.String())
}

func TestShouldContinue(t *testing.T) {
	tests := []struct {
		name     string
		policy   RetryPolicy
		expected types.ExpectationSet
		observed types.Outcomes
		want     bool
	}{
		{name: "nothing observed", policy: RetryPolicy{}, expected: types.ExpectPass, want: true},
		{name: "matched", policy: RetryPolicy{Limit: 3}, expected: types.ExpectPass, observed: types.Outcomes{pass}},
		{name: "retry budget left", policy: RetryPolicy{Limit: 1}, expected: types.ExpectPass, observed: types.Outcomes{fail}, want: true},
		{name: "retry budget spent", policy: RetryPolicy{Limit: 1}, expected: types.ExpectPass, observed: types.Outcomes{fail, fail}},
		{name: "no retries", policy: RetryPolicy{}, expected: types.ExpectPass, observed: types.Outcomes{fail}},
		{name: "skip short circuits", policy: RetryPolicy{Limit: 3}, expected: types.ExpectPass, observed: types.Outcomes{skip}},
		{
			name:     "timeout not retried when only failures are",
			policy:   RetryPolicy{Limit: 3, OnlyOnFailure: true},
			expected: types.ExpectPass,
			observed: types.Outcomes{timeout},
		},
		{
			name:     "crash retried when only failures are",
			policy:   RetryPolicy{Limit: 3, OnlyOnFailure: true},
			expected: types.ExpectPass,
			observed: types.Outcomes{crash},
			want:     true,
		},
		{
			name:     "repeat ignores matches",
			policy:   RetryPolicy{Repeat: 3},
			expected: types.ExpectPass,
			observed: types.Outcomes{pass, pass},
			want:     true,
		},
		{
			name:     "repeat stops at count",
			policy:   RetryPolicy{Repeat: 3},
			expected: types.ExpectPass,
			observed: types.Outcomes{pass, fail, pass},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ShouldContinue(tt.expected, tt.observed))
		})
	}
}

func TestMaxAttempts(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{}.MaxAttempts())
	assert.Equal(t, 4, RetryPolicy{Limit: 3}.MaxAttempts())
	assert.Equal(t, 5, RetryPolicy{Limit: 3, Repeat: 5}.MaxAttempts())
	assert.Equal(t, 1, RetryPolicy{Limit: -2}.MaxAttempts())
}

// drive feeds a scripted outcome stream through the policy the same way the
// runner does and returns what was observed.
func drive(policy RetryPolicy, expected types.ExpectationSet, script func(attempt int) types.Outcome) types.Outcomes {
	var observed types.Outcomes
	for policy.ShouldContinue(expected, observed) {
		observed = append(observed, script(len(observed)))
	}
	return observed
}

func TestAttemptCountProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(0, 6).Draw(rt, "limit")
		failuresBeforeMatch := rapid.IntRange(0, 10).Draw(rt, "failures")

		observed := drive(RetryPolicy{Limit: limit}, types.ExpectPass, func(attempt int) types.Outcome {
			if attempt < failuresBeforeMatch {
				return fail
			}
			return pass
		})

		require.Len(rt, observed, 1+min(failuresBeforeMatch, limit))
		record := Classify("t", types.ExpectPass, observed)
		require.Equal(rt, failuresBeforeMatch > limit, record.IsRegression)
	})
}

func TestRegressionProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expected := types.NewExpectationSet(rapid.SliceOfN(rapid.SampledFrom(types.AllOutcomes), 1, 3).Draw(rt, "expected")...)
		observed := types.Outcomes(rapid.SliceOfN(rapid.SampledFrom(types.AllOutcomes), 1, 6).Draw(rt, "observed"))

		record := Classify("t", expected, observed)
		anyMatch := false
		for _, o := range observed {
			anyMatch = anyMatch || expected.Contains(o)
		}
		require.Equal(rt, !anyMatch, record.IsRegression)
	})
}
