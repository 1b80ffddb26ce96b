package gui

import (
	"regexp"
	"strings"
)

var (
	sensitivePatterns = []string{
		"password=",
		"PASSWORD=",
		"secret=",
		"SECRET=",
		"token=",
		"TOKEN=",
		"api_key=",
		"API_KEY=",
	}

	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
	jwtPattern    = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)
)

const redacted = "[REDACTED]"

// sanitizeLogLine masks credentials before a line reaches the log panel.
// Backend error messages can echo request headers back at us.
func sanitizeLogLine(line string) string {
	line = bearerPattern.ReplaceAllString(line, "${1}"+redacted)
	line = jwtPattern.ReplaceAllString(line, redacted)

	for _, pattern := range sensitivePatterns {
		from := 0
		for {
			idx := strings.Index(line[from:], pattern)
			if idx == -1 {
				break
			}
			start := from + idx + len(pattern)
			if start < len(line) && (line[start] == '"' || line[start] == '\'') {
				start++
			}
			end := len(line)
			for i := start; i < len(line); i++ {
				if line[i] == ' ' || line[i] == '\n' || line[i] == '\t' || line[i] == '"' || line[i] == '\'' || line[i] == '&' {
					end = i
					break
				}
			}
			line = line[:start] + redacted + line[end:]
			from = start + len(redacted)
		}
	}
	return line
}
