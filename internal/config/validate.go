package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"

	"stageflow/internal/directory"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateSLA(); err != nil {
		return err
	}
	if err := c.validateBottlenecks(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorkflow() error {
	schedules := map[string]string{
		"workflow.auto_transition_schedule": c.Workflow.AutoTransitionSchedule,
		"workflow.escalation_schedule":      c.Workflow.EscalationSchedule,
	}
	for _, key := range sortedKeys(schedules) {
		if _, err := cron.ParseStandard(schedules[key]); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	role, err := directory.ParseRole(c.Workflow.DefaultApproverRole)
	if err != nil {
		return fmt.Errorf("workflow.default_approver_role: %w", err)
	}
	if role == directory.RoleNone || role == directory.RoleSystem {
		return errors.New("workflow.default_approver_role must name an assignable role")
	}
	return nil
}

func (c *Config) validateSLA() error {
	if err := ensureRatio("sla.at_risk_ratio", c.SLA.AtRiskRatio); err != nil {
		return err
	}
	for scope, ratio := range c.SLA.scopeRatios {
		if err := ensureRatio(fmt.Sprintf("sla.scope_at_risk_ratios.%d", scope), ratio); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateBottlenecks() error {
	if c.Bottlenecks.StuckHours <= 0 {
		return errors.New("bottlenecks.stuck_hours must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"bottlenecks.min_items": c.Bottlenecks.MinItems,
	})
}

func (c *Config) validateNotifications() error {
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensureRatio(key string, value float64) error {
	if value <= 0 || value >= 1 {
		return fmt.Errorf("%s must be between 0 and 1 (exclusive)", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
