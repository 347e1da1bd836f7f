package api

import (
	"math"
	"time"
)

// Hours converts a duration to fractional hours rounded to two decimals.
func Hours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
