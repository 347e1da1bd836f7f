// Package priority maps a work item's 0..1 priority score onto the coarse
// levels used in conditions, validation rules and reports.
package priority

import (
	"fmt"
	"strings"
)

// Level is the derived priority bucket of a work item.
type Level string

const (
	Low      Level = "low"
	Medium   Level = "medium"
	High     Level = "high"
	Critical Level = "critical"
)

const (
	mediumFloor   = 0.3
	highFloor     = 0.6
	criticalFloor = 0.8
)

// ForScore derives the level from a score. Scores outside 0..1 are clamped.
func ForScore(score float64) Level {
	score = Clamp(score)
	switch {
	case score >= criticalFloor:
		return Critical
	case score >= highFloor:
		return High
	case score >= mediumFloor:
		return Medium
	default:
		return Low
	}
}

// Clamp bounds a score to the 0..1 range.
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Rank orders levels so they can be compared with the condition operators.
func (l Level) Rank() int {
	switch l {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	case Critical:
		return 4
	default:
		return 0
	}
}

// Floor returns the lowest score that maps to the level.
func (l Level) Floor() float64 {
	switch l {
	case Medium:
		return mediumFloor
	case High:
		return highFloor
	case Critical:
		return criticalFloor
	default:
		return 0
	}
}

// ParseLevel accepts a level name in any case.
func ParseLevel(value string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(value)))
	if level.Rank() == 0 {
		return "", fmt.Errorf("unknown priority level %q", value)
	}
	return level, nil
}
