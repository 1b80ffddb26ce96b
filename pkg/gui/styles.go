package gui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lazyops/lazyops/pkg/api"
	"github.com/lazyops/lazyops/pkg/orchestrator"
)

// ANSI color codes for terminal styling
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconRunning = "●"
	iconPending = "○"
	iconWarning = "⚠"
	iconInfo    = "ℹ"
	iconArrow   = "›"
	iconLock    = "🔒"
	iconToast   = "❌"
)

func colorize(text, color string) string {
	return color + text + colorReset
}

func green(text string) string   { return colorize(text, colorGreen) }
func red(text string) string     { return colorize(text, colorRed) }
func yellow(text string) string  { return colorize(text, colorYellow) }
func blue(text string) string    { return colorize(text, colorBlue) }
func magenta(text string) string { return colorize(text, colorMagenta) }
func cyan(text string) string    { return colorize(text, colorCyan) }
func dim(text string) string     { return colorize(text, colorDim) }
func bold(text string) string    { return colorize(text, colorBold) }

// statusLine prefixes a message with the icon for its severity.
func statusLine(status, message string) string {
	switch status {
	case "success":
		return green(iconSuccess) + " " + message
	case "error":
		return red(iconError) + " " + message
	case "running":
		return yellow(iconRunning) + " " + message
	case "warning":
		return yellow(iconWarning) + " " + message
	case "info":
		return blue(iconInfo) + " " + message
	default:
		return message
	}
}

// statusBadge colors a process status label.
func statusBadge(label string) string {
	switch {
	case strings.HasPrefix(label, "Running"):
		return green(iconRunning) + " " + label
	case label == orchestrator.LabelLoading:
		return yellow(iconPending) + " " + label
	case label == orchestrator.LabelUnavailable:
		return red(iconPending) + " " + label
	default:
		return dim(iconPending + " " + label)
	}
}

func deployTypeBadge(t api.DeployType) string {
	if t == "" {
		return ""
	}
	if t == api.DeployRollback {
		return magenta(string(t))
	}
	return cyan(string(t))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func formatTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

// formatDate renders backend timestamps; unknown times render as "-".
func formatDate(ts api.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func timestampedLine(line string) string {
	return dim(formatTimestamp(time.Now())) + " " + line
}

// truncate shortens s to maxLen runes with an ellipsis.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// padRight pads s with spaces to width runes.
func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// column truncates then pads so table cells line up.
func column(s string, width int) string {
	return padRight(truncate(s, width), width)
}
