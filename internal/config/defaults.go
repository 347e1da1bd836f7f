package config

const (
	defaultConfigPath             = "~/.config/stageflow/config.toml"
	defaultDataDir                = "~/.local/share/stageflow"
	defaultLogDir                 = "~/.local/share/stageflow/logs"
	defaultSystemActor            = "system"
	defaultAutoTransitionSchedule = "@every 1m"
	defaultEscalationSchedule     = "@every 5m"
	defaultApproverRole           = "manager"
	defaultAtRiskRatio            = 0.25
	defaultStuckHours             = 72
	defaultBottleneckMinItems     = 1
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Workflow: Workflow{
			SystemActor:            defaultSystemActor,
			AutoTransitionSchedule: defaultAutoTransitionSchedule,
			EscalationSchedule:     defaultEscalationSchedule,
			DefaultApproverRole:    defaultApproverRole,
		},
		SLA: SLA{
			AtRiskRatio: defaultAtRiskRatio,
		},
		Bottlenecks: Bottlenecks{
			StuckHours: defaultStuckHours,
			MinItems:   defaultBottleneckMinItems,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Transitions:    true,
			Escalations:    true,
			Approvals:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
