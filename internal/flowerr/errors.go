package flowerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransitionNotFound reports that no active edge exists for from/to/scope.
	ErrTransitionNotFound = errors.New("transition not found")
	// ErrTransitionNotAllowed reports a failed role, condition or validation check.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	// ErrConcurrencyConflict reports that the work item changed stage since it was read.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrConfigurationInvalid reports orphaned or malformed stage/transition definitions.
	ErrConfigurationInvalid = errors.New("configuration invalid")
	// ErrApprovalNotRequired reports an approval decision on a stage without approval gating.
	ErrApprovalNotRequired = errors.New("approval not required")
	// ErrApprovalUnauthorized reports an approver below the stage's approver role.
	ErrApprovalUnauthorized = errors.New("approval unauthorized")
	// ErrNotFound reports a missing work item, stage, transition or actor.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error that carries component and operation context while
// remaining classifiable by marker. When marker is nil the cause alone is
// wrapped.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	switch {
	case marker == nil && err == nil:
		return errors.New(detail)
	case marker == nil:
		return fmt.Errorf("%s: %w", detail, err)
	case err == nil:
		return fmt.Errorf("%w: %s", marker, detail)
	default:
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
}

// Classify returns the first taxonomy marker matched by err, or nil.
func Classify(err error) error {
	for _, marker := range []error{
		ErrConcurrencyConflict,
		ErrTransitionNotFound,
		ErrTransitionNotAllowed,
		ErrApprovalNotRequired,
		ErrApprovalUnauthorized,
		ErrConfigurationInvalid,
		ErrNotFound,
	} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "workflow failure"
	}
	return strings.Join(parts, ": ")
}
