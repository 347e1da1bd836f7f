package notifications

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Transition describes a committed stage change.
type Transition struct {
	ItemID     int64
	Title      string
	ScopeID    int64
	FromStage  string
	ToStage    string
	ActorID    string
	Comment    string
	Automatic  bool
	Recipients []string
	// Template is an optional text/template for the subject line.
	Template string
}

// Escalation describes an SLA breach.
type Escalation struct {
	ItemID     int64
	Title      string
	ScopeID    int64
	Stage      string
	Deadline   time.Time
	Overdue    time.Duration
	Recipients []string
}

// ApprovalDecision describes an approve or reject decision.
type ApprovalDecision struct {
	ItemID     int64
	Title      string
	Stage      string
	ApproverID string
	Approved   bool
	Comment    string
	Recipients []string
}

type message struct {
	recipients []string
	subject    string
	body       string
	tags       []string
	priority   string
}

func transitionMessage(t Transition) message {
	subject := fmt.Sprintf("Stageflow - #%d moved to %s", t.ItemID, t.ToStage)
	if rendered, ok := renderSubject(t.Template, t); ok {
		subject = rendered
	}
	verb := "moved"
	if t.Automatic {
		verb = "auto-advanced"
	}
	body := fmt.Sprintf("%s %s from %s to %s by %s", quoteTitle(t.Title), verb, t.FromStage, t.ToStage, t.ActorID)
	if c := strings.TrimSpace(t.Comment); c != "" {
		body += "\nComment: " + c
	}
	return message{
		recipients: t.Recipients,
		subject:    subject,
		body:       body,
		tags:       []string{"stageflow", "transition"},
	}
}

func escalationMessage(e Escalation) message {
	overdue := e.Overdue.Round(time.Minute)
	if overdue < 0 {
		overdue = 0
	}
	return message{
		recipients: e.Recipients,
		subject:    fmt.Sprintf("Stageflow - SLA violated: #%d", e.ItemID),
		body: fmt.Sprintf("%s exceeded the %s SLA (due %s, overdue %s)",
			quoteTitle(e.Title), e.Stage, e.Deadline.UTC().Format(time.RFC3339), overdue),
		tags:     []string{"stageflow", "sla", "escalation"},
		priority: "high",
	}
}

func approvalMessage(a ApprovalDecision) message {
	decision, tag := "approved", "approved"
	if !a.Approved {
		decision, tag = "rejected", "rejected"
	}
	body := fmt.Sprintf("%s was %s in %s by %s", quoteTitle(a.Title), decision, a.Stage, a.ApproverID)
	if c := strings.TrimSpace(a.Comment); c != "" {
		body += "\nComment: " + c
	}
	return message{
		recipients: a.Recipients,
		subject:    fmt.Sprintf("Stageflow - #%d %s", a.ItemID, decision),
		body:       body,
		tags:       []string{"stageflow", "approval", tag},
	}
}

// renderSubject executes a subject template against a transition. Empty or
// failing templates report false.
func renderSubject(text string, data Transition) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	tmpl, err := template.New("subject").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", false
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", false
	}
	out := strings.TrimSpace(buf.String())
	return out, out != ""
}

// ValidateTemplate reports whether a subject template parses.
func ValidateTemplate(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if _, err := template.New("subject").Parse(text); err != nil {
		return fmt.Errorf("parse notification template: %w", err)
	}
	return nil
}

func quoteTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Work item"
	}
	return fmt.Sprintf("%q", title)
}
