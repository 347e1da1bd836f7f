package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stageflow/internal/directory"
	"stageflow/internal/priority"
)

// Combinator joins rule results.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// Script is a parsed condition.
type Script struct {
	Combinator Combinator
	Rules      []Rule
}

// Evaluate applies the script to the subject. A nil or empty script is true.
func (s *Script) Evaluate(subject Subject) bool {
	if s == nil || len(s.Rules) == 0 {
		return true
	}
	if s.Combinator == Or {
		for _, rule := range s.Rules {
			if rule.Evaluate(subject) {
				return true
			}
		}
		return false
	}
	for _, rule := range s.Rules {
		if !rule.Evaluate(subject) {
			return false
		}
	}
	return true
}

// Unknown lists the rule types the script carries that this engine does not recognise.
func (s *Script) Unknown() []string {
	if s == nil {
		return nil
	}
	var types []string
	for _, rule := range s.Rules {
		if u, ok := rule.(UnknownRule); ok {
			types = append(types, u.Type)
		}
	}
	return types
}

type rawScript struct {
	Combinator string    `json:"combinator"`
	Rules      []rawRule `json:"rules"`
}

type rawRule struct {
	Type     string          `json:"type"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// Evaluate parses text and evaluates it in one step.
func Evaluate(text string, subject Subject) (bool, error) {
	script, err := Parse(text)
	if err != nil {
		return false, err
	}
	return script.Evaluate(subject), nil
}

// Parse decodes the JSON form of a condition script. Blank text yields a nil script.
func Parse(text string) (*Script, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var raw rawScript
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode condition script: %w", err)
	}

	script := &Script{Combinator: And}
	switch strings.ToUpper(strings.TrimSpace(raw.Combinator)) {
	case "", string(And):
	case string(Or):
		script.Combinator = Or
	default:
		return nil, fmt.Errorf("unknown combinator %q", raw.Combinator)
	}

	script.Rules = make([]Rule, 0, len(raw.Rules))
	for i, rr := range raw.Rules {
		rule, err := parseRule(rr)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		script.Rules = append(script.Rules, rule)
	}
	return script, nil
}

func parseRule(rr rawRule) (Rule, error) {
	kind := Kind(strings.TrimSpace(rr.Type))
	switch kind {
	case KindPriority, KindRole, KindScope, KindTimeElapsed:
	default:
		return UnknownRule{Type: string(kind)}, nil
	}

	op, err := ParseOperator(rr.Operator)
	if err != nil {
		return nil, err
	}
	if len(rr.Value) == 0 {
		return nil, errors.New("value is required")
	}

	switch kind {
	case KindPriority:
		var score float64
		if err := json.Unmarshal(rr.Value, &score); err == nil {
			return PriorityRule{Op: op, Score: score}, nil
		}
		var name string
		if err := json.Unmarshal(rr.Value, &name); err != nil {
			return nil, fmt.Errorf("priority value must be a score or level: %w", err)
		}
		level, err := priority.ParseLevel(name)
		if err != nil {
			return nil, err
		}
		return PriorityRule{Op: op, Level: level}, nil
	case KindRole:
		var name string
		if err := json.Unmarshal(rr.Value, &name); err != nil {
			return nil, fmt.Errorf("role value must be a string: %w", err)
		}
		role, err := directory.ParseRole(name)
		if err != nil {
			return nil, err
		}
		return RoleRule{Op: op, Role: role}, nil
	case KindScope:
		var scope int64
		if err := json.Unmarshal(rr.Value, &scope); err != nil {
			return nil, fmt.Errorf("scope value must be an integer: %w", err)
		}
		return ScopeRule{Op: op, ScopeID: scope}, nil
	default:
		var hours float64
		if err := json.Unmarshal(rr.Value, &hours); err != nil {
			return nil, fmt.Errorf("timeElapsed value must be hours: %w", err)
		}
		return TimeElapsedRule{Op: op, Hours: hours}, nil
	}
}
