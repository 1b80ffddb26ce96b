package gui

import (
	"strings"
	"testing"
)

func TestSanitizeLogLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no sensitive data",
			input:    "Deploy of billing completed in 4.2s",
			expected: "Deploy of billing completed in 4.2s",
		},
		{
			name:     "password in query",
			input:    "GET /login?email=a@b.c&password=hunter2&x=1",
			expected: "GET /login?email=a@b.c&password=[REDACTED]&x=1",
		},
		{
			name:     "token quoted",
			input:    `token="abc123" rest`,
			expected: `token="[REDACTED]" rest`,
		},
		{
			name:     "token bare",
			input:    "token=abc123 rest",
			expected: "token=[REDACTED] rest",
		},
		{
			name:     "repeated pattern",
			input:    "secret=one secret=two",
			expected: "secret=[REDACTED] secret=[REDACTED]",
		},
		{
			name:     "bearer header",
			input:    "Authorization: Bearer abc.def-ghi",
			expected: "Authorization: Bearer [REDACTED]",
		},
		{
			name:     "bare jwt",
			input:    "stale session eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig_part",
			expected: "stale session [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeLogLine(tt.input)
			if got != tt.expected {
				t.Errorf("sanitizeLogLine(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if strings.Contains(tt.input, "hunter2") && strings.Contains(got, "hunter2") {
				t.Errorf("password leaked: %q", got)
			}
		})
	}
}
