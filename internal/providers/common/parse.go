package common

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func CleanHTMLText(raw string) string {
	value := strings.TrimSpace(raw)
	value = html.UnescapeString(value)
	value = tagPattern.ReplaceAllString(value, " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

// ParseClockDuration parses "m:ss" or "h:mm:ss" into seconds. Plain numbers are
// taken as seconds. Anything else yields 0.
func ParseClockDuration(raw string) float64 {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0
	}
	if !strings.Contains(value, ":") {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 {
			return 0
		}
		return parsed
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return float64(total)
}

// MillisToSeconds converts a millisecond count to seconds.
func MillisToSeconds(ms int64) float64 {
	if ms <= 0 {
		return 0
	}
	return float64(ms) / 1000
}
