package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		in      string
		want    Outcome
		wantErr bool
	}{
		{in: "PASS", want: OutcomePass},
		{in: "fail", want: OutcomeFail},
		{in: " Skip ", want: OutcomeSkip},
		{in: "TIMEOUT", want: OutcomeTimeout},
		{in: "CRASH", want: OutcomeCrash},
		{in: "FLAKY", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutcome(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutcomesString(t *testing.T) {
	seq := Outcomes{OutcomeFail, OutcomeFail, OutcomePass}
	assert.Equal(t, "FAIL FAIL PASS", seq.String())

	parsed, err := ParseOutcomes("FAIL FAIL PASS")
	require.NoError(t, err)
	assert.Equal(t, seq, parsed)

	last, ok := seq.Last()
	require.True(t, ok)
	assert.Equal(t, OutcomePass, last)

	_, ok = Outcomes{}.Last()
	assert.False(t, ok)
	assert.Equal(t, "", Outcomes{}.String())
}

func TestExpectationSet(t *testing.T) {
	s := NewExpectationSet(OutcomeSkip, OutcomeFail)
	assert.True(t, s.Contains(OutcomeFail))
	assert.True(t, s.Contains(OutcomeSkip))
	assert.False(t, s.Contains(OutcomePass))
	assert.False(t, s.Contains(Outcome(0)))
	assert.Equal(t, "FAIL SKIP", s.String(), "serialization uses canonical order")

	assert.True(t, NewExpectationSet(OutcomeSkip).Only(OutcomeSkip))
	assert.False(t, s.Only(OutcomeSkip))
	assert.True(t, s.Without(OutcomeFail).Only(OutcomeSkip))
	assert.True(t, ExpectationSet(0).IsEmpty())
	assert.False(t, ExpectationSet(0).Only(OutcomePass))
	assert.True(t, s.ContainsAny([]Outcome{OutcomePass, OutcomeSkip}))
	assert.False(t, s.ContainsAny([]Outcome{OutcomePass, OutcomeCrash}))
	assert.Equal(t, "PASS FAIL SKIP", s.Union(ExpectPass).String())
}

func TestExpectationSetYAML(t *testing.T) {
	var cfg struct {
		A ExpectationSet `yaml:"a"`
		B ExpectationSet `yaml:"b"`
	}
	err := yaml.Unmarshal([]byte("a: [PASS, FAIL]\nb: SKIP TIMEOUT\n"), &cfg)
	require.NoError(t, err)
	assert.Equal(t, NewExpectationSet(OutcomePass, OutcomeFail), cfg.A)
	assert.Equal(t, NewExpectationSet(OutcomeSkip, OutcomeTimeout), cfg.B)

	err = yaml.Unmarshal([]byte("a: [BOGUS]\n"), &cfg)
	assert.Error(t, err)
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		name   string
		record TestOutcomeRecord
		want   Verdict
	}{
		{
			name:   "first attempt passes",
			record: TestOutcomeRecord{Expected: ExpectPass, Actual: Outcomes{OutcomePass}},
			want:   VerdictPass,
		},
		{
			name:   "passes after failures",
			record: TestOutcomeRecord{Expected: ExpectPass, Actual: Outcomes{OutcomeFail, OutcomeFail, OutcomePass}},
			want:   VerdictFlaky,
		},
		{
			name:   "never matches",
			record: TestOutcomeRecord{Expected: ExpectPass, Actual: Outcomes{OutcomeFail}, IsRegression: true},
			want:   VerdictRegression,
		},
		{
			name:   "skipped",
			record: TestOutcomeRecord{Expected: NewExpectationSet(OutcomeSkip), Actual: Outcomes{OutcomeSkip}},
			want:   VerdictSkip,
		},
		{
			name:   "repeated passes",
			record: TestOutcomeRecord{Expected: ExpectPass, Actual: Outcomes{OutcomePass, OutcomePass, OutcomePass}},
			want:   VerdictPass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Verdict())
		})
	}
}

func TestPrimaryDevice(t *testing.T) {
	var nilInfo *GPUInfo
	_, ok := nilInfo.PrimaryDevice()
	assert.False(t, ok)

	info := &GPUInfo{Devices: []GPUDevice{{VendorID: 0x10de}, {VendorID: 0x8086}}}
	dev, ok := info.PrimaryDevice()
	require.True(t, ok)
	assert.Equal(t, uint32(0x10de), dev.VendorID)
}
