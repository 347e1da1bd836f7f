package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"stageflow/internal/directory"
	"stageflow/internal/priority"
)

// Built-in rule names.
const (
	RuleHighPriorityRequiresManager = "high_priority_requires_manager"
	RuleDescriptionMinLength        = "description_min_length"
	RuleApprovalStageReviewer       = "approval_stage_reviewer"
)

// MinDescriptionLength is the character count below which descriptions draw a warning.
const MinDescriptionLength = 20

func builtinRules() map[string]Rule {
	return map[string]Rule{
		RuleHighPriorityRequiresManager: highPriorityRequiresManager,
		RuleDescriptionMinLength:        descriptionMinLength,
		RuleApprovalStageReviewer:       approvalStageReviewer,
	}
}

func highPriorityRequiresManager(in Input) *Issue {
	level := in.Item.PriorityLevel()
	if level.Rank() < priority.High.Rank() || in.Actor.Role.AtLeast(directory.RoleManager) {
		return nil
	}
	return &Issue{
		Severity: SeverityError,
		Message:  fmt.Sprintf("%s priority items can only be moved by a manager or above", level),
	}
}

func descriptionMinLength(in Input) *Issue {
	if utf8.RuneCountInString(strings.TrimSpace(in.Item.Description)) >= MinDescriptionLength {
		return nil
	}
	return &Issue{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("description is shorter than %d characters", MinDescriptionLength),
	}
}

func approvalStageReviewer(in Input) *Issue {
	if in.To == nil || !in.To.ApprovalRequired || in.Actor.Role.AtLeast(directory.RoleReviewer) {
		return nil
	}
	return &Issue{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("stage %q requires approval; submitters below reviewer may be sent back", in.To.Name),
	}
}
