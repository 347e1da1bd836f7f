package testsupport

import (
	"context"
	"sync"

	"stageflow/internal/notifications"
)

// RecordingNotifier captures notifications in memory. Set Err to make every
// call fail after recording.
type RecordingNotifier struct {
	mu          sync.Mutex
	Err         error
	Generic     []string
	Transitions []notifications.Transition
	Escalations []notifications.Escalation
	Decisions   []notifications.ApprovalDecision
}

var _ notifications.Service = (*RecordingNotifier)(nil)

func (r *RecordingNotifier) Notify(_ context.Context, _ []string, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Generic = append(r.Generic, subject)
	return r.Err
}

func (r *RecordingNotifier) NotifyTransition(_ context.Context, t notifications.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transitions = append(r.Transitions, t)
	return r.Err
}

func (r *RecordingNotifier) NotifyEscalation(_ context.Context, e notifications.Escalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Escalations = append(r.Escalations, e)
	return r.Err
}

func (r *RecordingNotifier) NotifyApprovalDecision(_ context.Context, a notifications.ApprovalDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Decisions = append(r.Decisions, a)
	return r.Err
}

func (r *RecordingNotifier) TestNotification(context.Context) error {
	return r.Err
}

// TransitionCount returns the number of transition notifications seen.
func (r *RecordingNotifier) TransitionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Transitions)
}

// EscalationCount returns the number of escalation notifications seen.
func (r *RecordingNotifier) EscalationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Escalations)
}
