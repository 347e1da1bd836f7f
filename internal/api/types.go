package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WorkItem describes a work item in a transport-friendly format.
type WorkItem struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	OwnerID          string     `json:"ownerId,omitempty"`
	ScopeID          int64      `json:"scopeId"`
	Stage            int        `json:"stage"`
	StageName        string     `json:"stageName,omitempty"`
	Priority         float64    `json:"priority"`
	PriorityLevel    string     `json:"priorityLevel"`
	Status           string     `json:"status"`
	CreatedAt        string     `json:"createdAt,omitempty"`
	LastStageEntryAt string     `json:"lastStageEntryAt,omitempty"`
	UpdatedAt        string     `json:"updatedAt,omitempty"`
	TimeInStageHours float64    `json:"timeInStageHours"`
	SLA              *SLAStatus `json:"sla,omitempty"`
}

// Stage describes a stage definition.
type Stage struct {
	ID               int64    `json:"id"`
	ScopeID          int64    `json:"scopeId"`
	Order            int      `json:"order"`
	Name             string   `json:"name"`
	ApprovalRequired bool     `json:"approvalRequired"`
	ApproverRole     string   `json:"approverRole,omitempty"`
	SLAHours         *float64 `json:"slaHours,omitempty"`
	Terminal         bool     `json:"terminal"`
	Active           bool     `json:"active"`
}

// Transition describes a transition definition with stage names resolved.
type Transition struct {
	ID                   int64    `json:"id"`
	ScopeID              int64    `json:"scopeId"`
	FromStageID          int64    `json:"fromStageId"`
	FromStage            string   `json:"fromStage,omitempty"`
	FromOrder            int      `json:"fromOrder,omitempty"`
	ToStageID            int64    `json:"toStageId"`
	ToStage              string   `json:"toStage,omitempty"`
	ToOrder              int      `json:"toOrder,omitempty"`
	RequiredRole         string   `json:"requiredRole,omitempty"`
	Condition            string   `json:"condition,omitempty"`
	ValidationRules      []string `json:"validationRules,omitempty"`
	AutoDelayMinutes     *int     `json:"autoDelayMinutes,omitempty"`
	NotificationRequired bool     `json:"notificationRequired"`
	NotificationTemplate string   `json:"notificationTemplate,omitempty"`
	Active               bool     `json:"active"`
}

// AuditEntry mirrors one append-only audit record.
type AuditEntry struct {
	ID                       int64   `json:"id"`
	WorkItemID               int64   `json:"workItemId"`
	Action                   string  `json:"action"`
	OldStage                 *int    `json:"oldStage,omitempty"`
	NewStage                 *int    `json:"newStage,omitempty"`
	OldValue                 string  `json:"oldValue,omitempty"`
	NewValue                 string  `json:"newValue,omitempty"`
	ActorID                  string  `json:"actorId"`
	Timestamp                string  `json:"timestamp"`
	Comments                 string  `json:"comments,omitempty"`
	TimeInPreviousStageHours float64 `json:"timeInPreviousStageHours"`
	TransitionID             int64   `json:"transitionId,omitempty"`
	Automatic                bool    `json:"automatic"`
	Decision                 string  `json:"decision,omitempty"`
}

// HistoryState is one stage visit reconstructed from the audit trail.
type HistoryState struct {
	Stage         int     `json:"stage"`
	StageName     string  `json:"stageName"`
	EnteredAt     string  `json:"enteredAt"`
	ExitedAt      string  `json:"exitedAt,omitempty"`
	DurationHours float64 `json:"durationHours"`
	ActorID       string  `json:"actorId"`
	Comment       string  `json:"comment,omitempty"`
	Automatic     bool    `json:"automatic"`
	Decision      string  `json:"decision,omitempty"`
	Current       bool    `json:"current"`
}

// SLAStatus is the SLA position of an item.
type SLAStatus struct {
	State          string  `json:"state"`
	SLAHours       float64 `json:"slaHours,omitempty"`
	Deadline       string  `json:"deadline,omitempty"`
	RemainingHours float64 `json:"remainingHours"`
	ElapsedHours   float64 `json:"elapsedHours"`
}

// Decision explains a transition check.
type Decision struct {
	ItemID   int64    `json:"itemId"`
	Target   int      `json:"target"`
	Allowed  bool     `json:"allowed"`
	Gate     string   `json:"gate,omitempty"`
	Reasons  []string `json:"reasons"`
	Warnings []string `json:"warnings"`
}

// ItemState is the current position of an item and its possible targets.
type ItemState struct {
	Item             WorkItem `json:"item"`
	Terminal         bool     `json:"terminal"`
	AwaitingApproval bool     `json:"awaitingApproval"`
	Targets          []Stage  `json:"targets"`
}

// PendingApproval is an item awaiting an approval decision.
type PendingApproval struct {
	Item         WorkItem `json:"item"`
	WaitingHours float64  `json:"waitingHours"`
}

// Violation is an item past its stage deadline.
type Violation struct {
	Item         WorkItem `json:"item"`
	OverdueHours float64  `json:"overdueHours"`
}

// ApprovalResult reports an approval decision.
type ApprovalResult struct {
	Approved  bool     `json:"approved"`
	Moved     bool     `json:"moved"`
	FromStage string   `json:"fromStage"`
	ToStage   string   `json:"toStage"`
	Item      WorkItem `json:"item"`
}

// SweepResult summarizes one manual sweep run.
type SweepResult struct {
	Sweep      string `json:"sweep"`
	Scanned    int    `json:"scanned"`
	Advanced   int    `json:"advanced,omitempty"`
	Escalated  int    `json:"escalated,omitempty"`
	Duplicates int    `json:"duplicates,omitempty"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	DatabasePath string            `json:"databasePath"`
	LockFilePath string            `json:"lockFilePath"`
	MetricsBind  string            `json:"metricsBind,omitempty"`
	NextRuns     map[string]string `json:"nextRuns,omitempty"`
}
