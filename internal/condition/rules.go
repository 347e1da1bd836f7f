package condition

import (
	"fmt"
	"strings"
	"time"

	"stageflow/internal/directory"
	"stageflow/internal/priority"
)

// Kind names a rule variant.
type Kind string

const (
	KindPriority    Kind = "priority"
	KindRole        Kind = "role"
	KindScope       Kind = "scope"
	KindTimeElapsed Kind = "timeElapsed"
)

// Operator compares a subject value against a rule value.
type Operator string

const (
	Equals         Operator = "equals"
	GreaterThan    Operator = "greaterThan"
	LessThan       Operator = "lessThan"
	GreaterOrEqual Operator = "greaterOrEqual"
	LessOrEqual    Operator = "lessOrEqual"
)

var operators = []Operator{Equals, GreaterThan, LessThan, GreaterOrEqual, LessOrEqual}

// ParseOperator accepts an operator name in any case.
func ParseOperator(value string) (Operator, error) {
	trimmed := strings.TrimSpace(value)
	for _, op := range operators {
		if strings.EqualFold(trimmed, string(op)) {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", value)
}

func (o Operator) compare(actual, expected float64) bool {
	switch o {
	case Equals:
		return actual == expected
	case GreaterThan:
		return actual > expected
	case LessThan:
		return actual < expected
	case GreaterOrEqual:
		return actual >= expected
	case LessOrEqual:
		return actual <= expected
	default:
		return false
	}
}

// Subject is the view of a work item and actor that rules evaluate against.
type Subject struct {
	Priority    float64
	Role        directory.Role
	ScopeID     int64
	TimeInStage time.Duration
}

// Rule is one predicate of a Script. The set of implementations is closed.
type Rule interface {
	Kind() Kind
	Evaluate(Subject) bool
	isRule()
}

// PriorityRule compares the item's priority. When Level is set the
// comparison is between level ranks; otherwise between raw scores.
type PriorityRule struct {
	Op    Operator
	Score float64
	Level priority.Level
}

func (PriorityRule) Kind() Kind { return KindPriority }

func (r PriorityRule) Evaluate(s Subject) bool {
	if r.Level != "" {
		return r.Op.compare(float64(priority.ForScore(s.Priority).Rank()), float64(r.Level.Rank()))
	}
	return r.Op.compare(s.Priority, r.Score)
}

func (PriorityRule) isRule() {}

// RoleRule compares the acting role by rank.
type RoleRule struct {
	Op   Operator
	Role directory.Role
}

func (RoleRule) Kind() Kind { return KindRole }

func (r RoleRule) Evaluate(s Subject) bool {
	return r.Op.compare(float64(s.Role.Rank()), float64(r.Role.Rank()))
}

func (RoleRule) isRule() {}

// ScopeRule compares the item's scope id.
type ScopeRule struct {
	Op      Operator
	ScopeID int64
}

func (ScopeRule) Kind() Kind { return KindScope }

func (r ScopeRule) Evaluate(s Subject) bool {
	return r.Op.compare(float64(s.ScopeID), float64(r.ScopeID))
}

func (ScopeRule) isRule() {}

// TimeElapsedRule compares hours spent in the current stage.
type TimeElapsedRule struct {
	Op    Operator
	Hours float64
}

func (TimeElapsedRule) Kind() Kind { return KindTimeElapsed }

func (r TimeElapsedRule) Evaluate(s Subject) bool {
	return r.Op.compare(s.TimeInStage.Hours(), r.Hours)
}

func (TimeElapsedRule) isRule() {}

// UnknownRule holds a rule of an unrecognised type. It always passes.
type UnknownRule struct {
	Type string
}

func (r UnknownRule) Kind() Kind { return Kind(r.Type) }

func (UnknownRule) Evaluate(Subject) bool { return true }

func (UnknownRule) isRule() {}
