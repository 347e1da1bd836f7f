package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	if err := c.normalizeSLA(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.MetricsBind = strings.TrimSpace(c.Paths.MetricsBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv("STAGEFLOW_API_TOKEN"))
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.SystemActor = strings.TrimSpace(c.Workflow.SystemActor)
	if c.Workflow.SystemActor == "" {
		c.Workflow.SystemActor = defaultSystemActor
	}
	c.Workflow.AutoTransitionSchedule = strings.TrimSpace(c.Workflow.AutoTransitionSchedule)
	if c.Workflow.AutoTransitionSchedule == "" {
		c.Workflow.AutoTransitionSchedule = defaultAutoTransitionSchedule
	}
	c.Workflow.EscalationSchedule = strings.TrimSpace(c.Workflow.EscalationSchedule)
	if c.Workflow.EscalationSchedule == "" {
		c.Workflow.EscalationSchedule = defaultEscalationSchedule
	}
	c.Workflow.DefaultApproverRole = strings.TrimSpace(c.Workflow.DefaultApproverRole)
	if c.Workflow.DefaultApproverRole == "" {
		c.Workflow.DefaultApproverRole = defaultApproverRole
	}
	c.Workflow.RejectToStage = strings.TrimSpace(c.Workflow.RejectToStage)
}

func (c *Config) normalizeSLA() error {
	if c.SLA.AtRiskRatio == 0 {
		c.SLA.AtRiskRatio = defaultAtRiskRatio
	}
	c.SLA.scopeRatios = make(map[int64]float64, len(c.SLA.ScopeAtRiskRatios))
	for key, ratio := range c.SLA.ScopeAtRiskRatios {
		scope, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil || scope <= 0 {
			return fmt.Errorf("sla.scope_at_risk_ratios: key %q is not a positive scope id", key)
		}
		c.SLA.scopeRatios[scope] = ratio
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("STAGEFLOW_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
