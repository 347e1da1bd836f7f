package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stageflow/internal/config"
)

const userAgent = "Stageflow-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
	NotifyTransition(ctx context.Context, t Transition) error
	NotifyEscalation(ctx context.Context, e Escalation) error
	NotifyApprovalDecision(ctx context.Context, a ApprovalDecision) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		transitions: cfg.Notifications.Transitions,
		escalations: cfg.Notifications.Escalations,
		approvals:   cfg.Notifications.Approvals,
	}
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	transitions bool
	escalations bool
	approvals   bool
}

func (n *ntfyService) Notify(ctx context.Context, recipients []string, subject, body string) error {
	return n.send(ctx, message{
		recipients: recipients,
		subject:    subject,
		body:       body,
		tags:       []string{"stageflow"},
	})
}

func (n *ntfyService) NotifyTransition(ctx context.Context, t Transition) error {
	if !n.transitions {
		return nil
	}
	return n.send(ctx, transitionMessage(t))
}

func (n *ntfyService) NotifyEscalation(ctx context.Context, e Escalation) error {
	if !n.escalations {
		return nil
	}
	return n.send(ctx, escalationMessage(e))
}

func (n *ntfyService) NotifyApprovalDecision(ctx context.Context, a ApprovalDecision) error {
	if !n.approvals {
		return nil
	}
	return n.send(ctx, approvalMessage(a))
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, message{
		subject:  "Stageflow - Test",
		body:     "Notification system test",
		tags:     []string{"stageflow", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	body := data.body
	if recipients := compact(data.recipients); len(recipients) > 0 {
		body = fmt.Sprintf("%s\nFor: %s", body, strings.Join(recipients, ", "))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.subject != "" {
		req.Header.Set("Title", data.subject)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type noopService struct{}

func (noopService) Notify(context.Context, []string, string, string) error         { return nil }
func (noopService) NotifyTransition(context.Context, Transition) error             { return nil }
func (noopService) NotifyEscalation(context.Context, Escalation) error             { return nil }
func (noopService) NotifyApprovalDecision(context.Context, ApprovalDecision) error { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }

// Noop returns a service that discards every message.
func Noop() Service {
	return noopService{}
}
