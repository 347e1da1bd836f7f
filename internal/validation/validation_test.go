package validation_test

import (
	"strings"
	"testing"

	"stageflow/internal/directory"
	"stageflow/internal/store"
	"stageflow/internal/validation"
)

func baseInput() validation.Input {
	return validation.Input{
		Transition: &store.Transition{RequiredRole: directory.RoleReviewer},
		From:       &store.Stage{Order: 1, Name: "Draft"},
		To:         &store.Stage{Order: 2, Name: "Review"},
		Item: &store.WorkItem{
			Title:       "Quarterly vendor audit",
			Description: "Collect evidence from every vendor onboarded this quarter.",
			ScopeID:     1,
			Priority:    0.2,
		},
		Actor: directory.Actor{ID: "rita", Role: directory.RoleManager},
	}
}

func TestValidatePassesCompleteInput(t *testing.T) {
	result := validation.New().Validate(baseInput())
	if !result.IsValid || len(result.Errors) != 0 || len(result.Warnings) != 0 {
		t.Fatalf("expected clean result, got %+v", result)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	in := baseInput()
	in.Item.Title = " "
	in.Item.Description = ""
	in.Item.ScopeID = 0

	result := validation.New().Validate(in)
	if result.IsValid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected three field errors, got %v", result.Errors)
	}
}

func TestValidateRoleFloor(t *testing.T) {
	in := baseInput()
	in.Actor.Role = directory.RoleContributor

	result := validation.New().Validate(in)
	if result.IsValid {
		t.Fatal("contributor should not satisfy a reviewer floor")
	}
	if !strings.Contains(result.Errors[0], "reviewer") {
		t.Fatalf("unexpected error %q", result.Errors[0])
	}
}

func TestBuiltinRules(t *testing.T) {
	engine := validation.New()

	in := baseInput()
	in.Transition.RequiredRole = directory.RoleNone
	in.Transition.ValidationRules = []string{
		validation.RuleHighPriorityRequiresManager,
		validation.RuleDescriptionMinLength,
		validation.RuleApprovalStageReviewer,
	}
	in.Item.Priority = 0.9
	in.Item.Description = "short"
	in.To.ApprovalRequired = true
	in.Actor.Role = directory.RoleContributor

	result := engine.Validate(in)
	if result.IsValid || len(result.Errors) != 1 {
		t.Fatalf("expected one high priority error, got %+v", result)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected description and approval warnings, got %v", result.Warnings)
	}

	in.Actor.Role = directory.RoleManager
	result = engine.Validate(in)
	if !result.IsValid {
		t.Fatalf("manager should pass high priority rule: %+v", result)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("only the description warning should remain, got %v", result.Warnings)
	}
}

func TestUnknownRuleIsWarning(t *testing.T) {
	in := baseInput()
	in.Transition.ValidationRules = []string{"budget_signed_off"}

	result := validation.New().Validate(in)
	if !result.IsValid {
		t.Fatalf("unknown rules must not block: %+v", result)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "budget_signed_off") {
		t.Fatalf("unexpected warnings %v", result.Warnings)
	}
}

func TestRegisterCustomRule(t *testing.T) {
	engine := validation.New()
	err := engine.Register("budget_signed_off", func(in validation.Input) *validation.Issue {
		if strings.Contains(in.Item.Description, "budget") {
			return nil
		}
		return &validation.Issue{Severity: validation.SeverityError, Message: "budget sign-off missing"}
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !engine.Has("budget_signed_off") {
		t.Fatal("expected rule to be registered")
	}

	in := baseInput()
	in.Transition.ValidationRules = []string{"budget_signed_off"}
	if result := engine.Validate(in); result.IsValid {
		t.Fatal("custom rule should reject input without budget")
	}
	if err := engine.Register("", nil); err == nil {
		t.Fatal("expected error for empty rule name")
	}
}
