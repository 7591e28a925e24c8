package textutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS from one hour on.
// Fractions are truncated and negative input is treated as zero.
func FormatTimestamp(seconds float64) string {
	total := wholeSeconds(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// ParseTimestamp accepts HH:MM:SS, MM:SS or plain seconds.
func ParseTimestamp(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("parse timestamp %q: too many fields", value)
	}
	var total float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("parse timestamp %q: invalid field %q", value, part)
		}
		total = total*60 + n
	}
	return total, nil
}

// FormatDuration renders seconds as "1h 23m 45s", omitting zero units.
func FormatDuration(seconds float64) string {
	total := wholeSeconds(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

func wholeSeconds(seconds float64) int {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	if math.IsInf(seconds, 1) {
		return math.MaxInt32
	}
	return int(seconds)
}
