package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stageflow/internal/config"
)

const ntfyCheckName = "ntfy"

// CheckNtfyFromConfig reports ntfy as disabled when no topic is configured
// and probes the server otherwise.
func CheckNtfyFromConfig(ctx context.Context, cfg *config.Config) Result {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: ntfyCheckName, Optional: true, Passed: true, Detail: "Disabled"}
	}
	return CheckNtfy(ctx, cfg.Notifications.NtfyTopic)
}

// CheckNtfy verifies that the ntfy server behind topic answers a poll request.
func CheckNtfy(ctx context.Context, topic string) Result {
	result := Result{Name: ntfyCheckName, Optional: true}

	base := strings.TrimRight(strings.TrimSpace(topic), "/")
	if base == "" {
		result.Detail = "missing topic url"
		return result
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		result.Detail = fmt.Sprintf("invalid topic url (%v)", err)
		return result
	}

	pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(pollCtx, http.MethodGet, base+"/json?poll=1&since=1m", nil)
	if err != nil {
		result.Detail = fmt.Sprintf("poll failed (%v)", err)
		return result
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Detail = describePollError(err)
		return result
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		result.Passed = true
		result.Detail = "Reachable"
	case http.StatusUnauthorized, http.StatusForbidden:
		result.Detail = "auth failed (topic is protected)"
	default:
		result.Detail = fmt.Sprintf("poll failed (%d)", resp.StatusCode)
	}
	return result
}

func describePollError(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "poll timed out"
	}
	return err.Error()
}
