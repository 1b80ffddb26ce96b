package gui

import (
	"strings"
	"testing"
	"time"

	"github.com/lazyops/lazyops/pkg/api"
	"github.com/lazyops/lazyops/pkg/orchestrator"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"milliseconds", 500 * time.Millisecond, "500ms"},
		{"seconds", 5 * time.Second, "5.0s"},
		{"seconds with ms", 5500 * time.Millisecond, "5.5s"},
		{"minutes", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours", 1*time.Hour + 15*time.Minute, "1h15m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hi", 2, "hi"},
		{"hello", 5, "hello"},
		{"hello", 4, "h..."},
		{"日本語テキスト", 5, "日本..."},
		{"hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := truncate(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		input    string
		width    int
		expected string
	}{
		{"hello", 10, "hello     "},
		{"hello", 5, "hello"},
		{"hello", 3, "hello"},
		{"héllo", 6, "héllo "},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := padRight(tt.input, tt.width)
			if result != tt.expected {
				t.Errorf("padRight(%q, %d) = %q, want %q", tt.input, tt.width, result, tt.expected)
			}
		})
	}
}

func TestColumn(t *testing.T) {
	if got := column("billing-service-api", 10); got != "billing..." {
		t.Errorf("column long = %q", got)
	}
	if got := column("web", 6); got != "web   " {
		t.Errorf("column short = %q", got)
	}
}

func TestStatusBadge(t *testing.T) {
	tests := []struct {
		label string
		color string
	}{
		{"Running (PID: 1, Port: 80)", colorGreen},
		{orchestrator.LabelLoading, colorYellow},
		{orchestrator.LabelUnavailable, colorRed},
		{orchestrator.LabelStopped, colorDim},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := statusBadge(tt.label)
			if !strings.Contains(got, tt.label) {
				t.Errorf("statusBadge(%q) = %q, label missing", tt.label, got)
			}
			if !strings.HasPrefix(got, tt.color) {
				t.Errorf("statusBadge(%q) = %q, want color %q", tt.label, got, tt.color)
			}
		})
	}
}

func TestDeployTypeBadge(t *testing.T) {
	if got := deployTypeBadge(""); got != "" {
		t.Errorf("empty type = %q", got)
	}
	if got := deployTypeBadge(api.DeployRollback); got != magenta("ROLLBACK") {
		t.Errorf("rollback = %q", got)
	}
	if got := deployTypeBadge(api.DeployClassic); got != cyan("CLASSIC") {
		t.Errorf("classic = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate(api.Timestamp{}); got != "-" {
		t.Errorf("zero = %q, want -", got)
	}
	ts := api.Timestamp{Time: time.Date(2024, 3, 9, 14, 5, 0, 0, time.Local)}
	if got := formatDate(ts); got != "2024-03-09 14:05" {
		t.Errorf("formatDate = %q", got)
	}
}

func TestStatusLine(t *testing.T) {
	if got := statusLine("error", "boom"); got != red(iconError)+" boom" {
		t.Errorf("error line = %q", got)
	}
	if got := statusLine("other", "plain"); got != "plain" {
		t.Errorf("unknown status = %q", got)
	}
}
