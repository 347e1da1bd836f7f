package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	MetricsBind string `toml:"metrics_bind"`
	// APIToken guards the daemon's HTTP endpoints when set.
	APIToken string `toml:"api_token"`
}

// Workflow contains engine identity, sweep schedules and approval policy.
type Workflow struct {
	SystemActor            string `toml:"system_actor"`
	AutoTransitionSchedule string `toml:"auto_transition_schedule"`
	EscalationSchedule     string `toml:"escalation_schedule"`
	DefaultApproverRole    string `toml:"default_approver_role"`
	// RejectToStage names the stage rejected items move to. Empty keeps
	// rejected items in their current stage.
	RejectToStage string `toml:"reject_to_stage"`
}

// SLA contains the at-risk threshold as a fraction of the stage SLA window.
type SLA struct {
	AtRiskRatio float64 `toml:"at_risk_ratio"`
	// ScopeAtRiskRatios overrides AtRiskRatio per scope id. TOML keys are
	// strings, so ids are parsed during normalization.
	ScopeAtRiskRatios map[string]float64 `toml:"scope_at_risk_ratios"`

	scopeRatios map[int64]float64
}

// Bottlenecks contains the thresholds used to flag stuck stages.
type Bottlenecks struct {
	StuckHours float64 `toml:"stuck_hours"`
	MinItems   int     `toml:"min_items"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Transitions    bool   `toml:"transitions"`
	Escalations    bool   `toml:"escalations"`
	Approvals      bool   `toml:"approvals"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for stageflow.
//
// Configuration sections by subsystem:
//   - Paths: database, log and metrics locations
//   - Workflow: system identity, sweep schedules, approval policy
//   - SLA: at-risk thresholds, globally and per scope
//   - Bottlenecks: stuck-stage detection thresholds
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	SLA           SLA           `toml:"sla"`
	Bottlenecks   Bottlenecks   `toml:"bottlenecks"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load reads the configuration at path, or discovers one when path is empty,
// then normalizes and validates it. It also reports the file it resolved and
// whether that file existed; a missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locate resolves an explicit path as given. Otherwise it tries
// $STAGEFLOW_CONFIG, the per-user file and ./stageflow.toml in that order,
// falling back to the per-user location when none exists.
func locate(explicit string) (string, bool, error) {
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv("STAGEFLOW_CONFIG"))
	}
	if explicit != "" {
		path, err := ExpandPath(explicit)
		if err != nil {
			return "", false, err
		}
		exists, err := fileExists(path)
		if err != nil {
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return path, exists, nil
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, "stageflow.toml"} {
		path, err := ExpandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if ok, _ := fileExists(path); ok {
			return path, true, nil
		}
	}
	return userPath, false, nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "stageflow.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "stageflowd.lock")
}

// PIDPath returns the file the running daemon records its process id in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "stageflowd.pid")
}

// LogPath returns the daemon log file location, or "" when file logging is disabled.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "stageflow.log")
}

// AtRiskRatios returns the per-scope overrides keyed by scope id.
func (c *Config) AtRiskRatios() map[int64]float64 {
	out := make(map[int64]float64, len(c.SLA.scopeRatios))
	for scope, ratio := range c.SLA.scopeRatios {
		out[scope] = ratio
	}
	return out
}

// ExpandPath resolves a leading ~ to the home directory and returns the
// cleaned absolute path. An empty value stays empty.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
