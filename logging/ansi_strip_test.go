package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripANSIEscapeSequences(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "No ANSI sequences",
			input:    "page reported: FAIL at draw call 3",
			expected: "page reported: FAIL at draw call 3",
		},
		{
			name:     "Basic color sequence",
			input:    "\x1b[31mFAIL\x1b[0m",
			expected: "FAIL",
		},
		{
			name:     "Browser console line",
			input:    "\x1b[33mWARN \x1b[0m[10-18|09:12:44.120] GPU stall detected \x1b[33mdevice\x1b[0m=0x1cb3",
			expected: "WARN [10-18|09:12:44.120] GPU stall detected device=0x1cb3",
		},
		{
			name:     "Escaped sequences are kept",
			input:    "\x1b[32mPASS\x1b[0m \"\\x1b[32mliteral\\x1b[0m\"",
			expected: "PASS \"\\x1b[32mliteral\\x1b[0m\"",
		},
		{
			name:     "Multiple parameters in escape sequence",
			input:    "\x1b[1;31mCRASH\x1b[0m renderer gone",
			expected: "CRASH renderer gone",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripANSIEscapeSequences(tc.input))
		})
	}
}
