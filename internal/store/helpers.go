package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stageflow/internal/directory"
)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func mustTime(value string) time.Time {
	t, _ := parseTimeString(value)
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableScope(scope int64) any {
	if scope == GlobalScope {
		return nil
	}
	return scope
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func encodeRules(rules []string) (any, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encode validation rules: %w", err)
	}
	return string(data), nil
}

func decodeRules(raw sql.NullString) ([]string, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var rules []string
	if err := json.Unmarshal([]byte(raw.String), &rules); err != nil {
		return nil, fmt.Errorf("decode validation rules: %w", err)
	}
	return rules, nil
}

type scanner interface {
	Scan(dest ...any) error
}

const stageColumns = "id, scope_id, stage_order, name, approval_required, approver_role, sla_hours, terminal, is_active, created_at, updated_at"

func scanStage(row scanner) (*Stage, error) {
	var (
		stage        Stage
		scope        sql.NullInt64
		approverRole sql.NullString
		slaHours     sql.NullFloat64
		approval     int
		terminal     int
		active       int
		createdRaw   string
		updatedRaw   string
	)
	if err := row.Scan(&stage.ID, &scope, &stage.Order, &stage.Name, &approval, &approverRole,
		&slaHours, &terminal, &active, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	stage.ScopeID = scope.Int64
	stage.ApprovalRequired = approval != 0
	stage.ApproverRole = directory.Role(approverRole.String)
	if slaHours.Valid {
		hours := slaHours.Float64
		stage.SLAHours = &hours
	}
	stage.Terminal = terminal != 0
	stage.IsActive = active != 0
	stage.CreatedAt = mustTime(createdRaw)
	stage.UpdatedAt = mustTime(updatedRaw)
	return &stage, nil
}

const transitionColumns = "id, scope_id, from_stage_id, to_stage_id, required_role, condition_script, validation_rules, auto_delay_minutes, notification_required, notification_template, is_active, created_at, updated_at"

func scanTransition(row scanner) (*Transition, error) {
	var (
		tr         Transition
		scope      sql.NullInt64
		role       sql.NullString
		script     sql.NullString
		rules      sql.NullString
		delay      sql.NullInt64
		notify     int
		template   sql.NullString
		active     int
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&tr.ID, &scope, &tr.FromStageID, &tr.ToStageID, &role, &script, &rules,
		&delay, &notify, &template, &active, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	decoded, err := decodeRules(rules)
	if err != nil {
		return nil, err
	}
	tr.ScopeID = scope.Int64
	tr.RequiredRole = directory.Role(role.String)
	tr.ConditionScript = script.String
	tr.ValidationRules = decoded
	tr.AutoTransitionDelayMinutes = intPtr(delay)
	tr.NotificationRequired = notify != 0
	tr.NotificationTemplate = template.String
	tr.IsActive = active != 0
	tr.CreatedAt = mustTime(createdRaw)
	tr.UpdatedAt = mustTime(updatedRaw)
	return &tr, nil
}

const workItemColumns = "id, title, description, owner_id, scope_id, current_stage, priority, status, created_at, last_stage_entry_at, updated_at"

func scanWorkItem(row scanner) (*WorkItem, error) {
	var (
		item       WorkItem
		owner      sql.NullString
		status     string
		createdRaw string
		entryRaw   string
		updatedRaw string
	)
	if err := row.Scan(&item.ID, &item.Title, &item.Description, &owner, &item.ScopeID,
		&item.CurrentStage, &item.Priority, &status, &createdRaw, &entryRaw, &updatedRaw); err != nil {
		return nil, err
	}
	item.OwnerID = owner.String
	item.Status = Status(status)
	item.CreatedAt = mustTime(createdRaw)
	item.LastStageEntryAt = mustTime(entryRaw)
	item.UpdatedAt = mustTime(updatedRaw)
	return &item, nil
}

const auditColumns = "id, work_item_id, action, old_value, new_value, old_stage_order, new_stage_order, actor_id, occurred_at, comments, time_in_previous_stage_hours, transition_id, automatic, decision"

func scanAuditEntry(row scanner) (*AuditEntry, error) {
	var (
		entry        AuditEntry
		action       string
		oldValue     sql.NullString
		newValue     sql.NullString
		oldStage     sql.NullInt64
		newStage     sql.NullInt64
		occurredRaw  string
		comments     sql.NullString
		transitionID sql.NullInt64
		automatic    int
		decision     sql.NullString
	)
	if err := row.Scan(&entry.ID, &entry.WorkItemID, &action, &oldValue, &newValue, &oldStage, &newStage,
		&entry.ActorID, &occurredRaw, &comments, &entry.Metadata.TimeInPreviousStageHours,
		&transitionID, &automatic, &decision); err != nil {
		return nil, err
	}
	entry.Action = Action(action)
	entry.OldValue = oldValue.String
	entry.NewValue = newValue.String
	entry.OldStage = intPtr(oldStage)
	entry.NewStage = intPtr(newStage)
	entry.Timestamp = mustTime(occurredRaw)
	entry.Comments = comments.String
	entry.Metadata.TransitionID = transitionID.Int64
	entry.Metadata.ActorID = entry.ActorID
	entry.Metadata.Automatic = automatic != 0
	entry.Metadata.Decision = decision.String
	return &entry, nil
}

const eventColumns = "sequence, id, work_item_id, audit_entry_id, event_type, payload, occurred_at"

func scanEvent(row scanner) (*Event, error) {
	var (
		event       Event
		eventType   string
		payload     string
		occurredRaw string
	)
	if err := row.Scan(&event.Sequence, &event.ID, &event.WorkItemID, &event.AuditEntryID,
		&eventType, &payload, &occurredRaw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	event.Type = EventType(eventType)
	event.OccurredAt = mustTime(occurredRaw)
	return &event, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
