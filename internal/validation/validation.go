// Package validation checks a proposed transition against required fields,
// the transition's role floor and the named business rules it lists.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"stageflow/internal/directory"
	"stageflow/internal/store"
)

// Severity grades a rule finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Input is everything a rule may inspect.
type Input struct {
	Transition *store.Transition
	From       *store.Stage
	To         *store.Stage
	Item       *store.WorkItem
	Actor      directory.Actor
}

// Issue is a single rule finding.
type Issue struct {
	Severity Severity
	Message  string
}

// Rule inspects an input and returns nil when it passes.
type Rule func(Input) *Issue

// Result aggregates the findings of one validation pass.
type Result struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Result) add(issue *Issue) {
	if issue == nil {
		return
	}
	if issue.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, issue.Message)
		return
	}
	r.Errors = append(r.Errors, issue.Message)
}

// Engine holds the named business rules.
type Engine struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// New returns an engine with the built-in rules registered.
func New() *Engine {
	e := &Engine{rules: make(map[string]Rule)}
	for name, rule := range builtinRules() {
		e.rules[name] = rule
	}
	return e
}

// Register adds or replaces a named rule.
func (e *Engine) Register(name string, rule Rule) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("rule name is required")
	}
	if rule == nil {
		return fmt.Errorf("rule %q is nil", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[name] = rule
	return nil
}

// Has reports whether name is registered.
func (e *Engine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.rules[name]
	return ok
}

// Names lists the registered rule names in sorted order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.rules))
	for name := range e.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate runs every check and reports IsValid when no errors were found.
func (e *Engine) Validate(in Input) Result {
	var result Result

	if in.Item == nil {
		result.Errors = append(result.Errors, "work item is required")
		return result
	}
	if strings.TrimSpace(in.Item.Title) == "" {
		result.Errors = append(result.Errors, "title is required")
	}
	if strings.TrimSpace(in.Item.Description) == "" {
		result.Errors = append(result.Errors, "description is required")
	}
	if in.Item.ScopeID <= 0 {
		result.Errors = append(result.Errors, "scope id must be positive")
	}

	if in.Transition != nil {
		if !in.Actor.Role.AtLeast(in.Transition.RequiredRole) {
			result.Errors = append(result.Errors, fmt.Sprintf("role %s is below the required role %s",
				in.Actor.Role, in.Transition.RequiredRole))
		}
		for _, name := range in.Transition.ValidationRules {
			e.mu.RLock()
			rule, ok := e.rules[name]
			e.mu.RUnlock()
			if !ok {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown validation rule %q skipped", name))
				continue
			}
			result.add(rule(in))
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}
