package store

import (
	"time"

	"stageflow/internal/directory"
	"stageflow/internal/priority"
)

// GlobalScope marks definitions that apply to every scope without an override.
const GlobalScope int64 = 0

// Status is the lifecycle state of a work item.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Stage is an ordered state a work item can occupy.
type Stage struct {
	ID               int64
	ScopeID          int64
	Order            int
	Name             string
	ApprovalRequired bool
	// ApproverRole is the minimum role allowed to decide approvals; empty
	// defers to the configured default.
	ApproverRole directory.Role
	SLAHours     *float64
	Terminal     bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsGlobal reports whether the stage is a global default.
func (s *Stage) IsGlobal() bool {
	return s.ScopeID == GlobalScope
}

// SLA returns the stage time budget.
func (s *Stage) SLA() (time.Duration, bool) {
	if s == nil || s.SLAHours == nil || *s.SLAHours <= 0 {
		return 0, false
	}
	return time.Duration(*s.SLAHours * float64(time.Hour)), true
}

// Transition is a directed, gated edge between two stages.
type Transition struct {
	ID                         int64
	ScopeID                    int64
	FromStageID                int64
	ToStageID                  int64
	RequiredRole               directory.Role
	ConditionScript            string
	ValidationRules            []string
	AutoTransitionDelayMinutes *int
	NotificationRequired       bool
	NotificationTemplate       string
	IsActive                   bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// AutoDelay returns the auto-transition delay when one is configured.
func (t *Transition) AutoDelay() (time.Duration, bool) {
	if t == nil || t.AutoTransitionDelayMinutes == nil || *t.AutoTransitionDelayMinutes < 0 {
		return 0, false
	}
	return time.Duration(*t.AutoTransitionDelayMinutes) * time.Minute, true
}

// WorkItem is a business item moving through the stages of its scope.
type WorkItem struct {
	ID               int64
	Title            string
	Description      string
	OwnerID          string
	ScopeID          int64
	CurrentStage     int
	Priority         float64
	Status           Status
	CreatedAt        time.Time
	LastStageEntryAt time.Time
	UpdatedAt        time.Time
}

// PriorityLevel derives the coarse priority bucket.
func (w *WorkItem) PriorityLevel() priority.Level {
	return priority.ForScore(w.Priority)
}

// TimeInStage returns how long the item has been in its current stage at now.
func (w *WorkItem) TimeInStage(now time.Time) time.Duration {
	if w.LastStageEntryAt.IsZero() || now.Before(w.LastStageEntryAt) {
		return 0
	}
	return now.Sub(w.LastStageEntryAt)
}

// Action classifies an audit entry.
type Action string

const (
	ActionCreated          Action = "created"
	ActionStageChanged     Action = "stage_changed"
	ActionApprovalRejected Action = "approval_rejected"
)

// TransitionMetadata is the structured context recorded with each audit entry.
type TransitionMetadata struct {
	TimeInPreviousStageHours float64 `json:"timeInPreviousStageHours"`
	TransitionID             int64   `json:"transitionId,omitempty"`
	ActorID                  string  `json:"actorId"`
	Automatic                bool    `json:"automatic,omitempty"`
	Decision                 string  `json:"decision,omitempty"`
}

// AuditEntry is an immutable record of a stage change or approval decision.
type AuditEntry struct {
	ID         int64
	WorkItemID int64
	Action     Action
	OldValue   string
	NewValue   string
	OldStage   *int
	NewStage   *int
	ActorID    string
	Timestamp  time.Time
	Comments   string
	Metadata   TransitionMetadata
}

// EventType classifies a workflow event.
type EventType string

const (
	EventCreated          EventType = "workflow.created"
	EventTransitioned     EventType = "workflow.transitioned"
	EventApprovalRejected EventType = "workflow.approval_rejected"
)

// EventPayload is the typed body of a workflow event.
type EventPayload struct {
	FromStage                string  `json:"fromStage,omitempty"`
	ToStage                  string  `json:"toStage,omitempty"`
	FromOrder                *int    `json:"fromOrder,omitempty"`
	ToOrder                  *int    `json:"toOrder,omitempty"`
	ScopeID                  int64   `json:"scopeId"`
	ActorID                  string  `json:"actorId"`
	TransitionID             int64   `json:"transitionId,omitempty"`
	Comment                  string  `json:"comment,omitempty"`
	TimeInPreviousStageHours float64 `json:"timeInPreviousStageHours,omitempty"`
	Automatic                bool    `json:"automatic,omitempty"`
	Decision                 string  `json:"decision,omitempty"`
}

// Event is an event-store record written alongside an audit entry.
type Event struct {
	Sequence     int64
	ID           string
	WorkItemID   int64
	AuditEntryID int64
	Type         EventType
	Payload      EventPayload
	OccurredAt   time.Time
}

// Record pairs the audit entry and event appended for one committed change.
type Record struct {
	Entry AuditEntry
	Event Event
}

// Escalation marks one SLA breach of a work item's stage visit.
type Escalation struct {
	ID             string
	WorkItemID     int64
	StageOrder     int
	StageEnteredAt time.Time
	Deadline       time.Time
	CreatedAt      time.Time
}
