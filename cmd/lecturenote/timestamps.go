package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseTimestamp accepts plain seconds ("95.5"), "mm:ss" or "hh:mm:ss".
func parseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var total float64
	for i, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q: field out of range", value)
		}
		total = total*60 + n
	}
	return total, nil
}

func parseTimestamps(values []string) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, value := range values {
		for _, piece := range strings.Split(value, ",") {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			ts, err := parseTimestamp(piece)
			if err != nil {
				return nil, err
			}
			out = append(out, ts)
		}
	}
	return out, nil
}
