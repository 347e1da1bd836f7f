package testsupport

import (
	"path/filepath"
	"testing"

	"stageflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.MetricsBind = "127.0.0.1:0"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithRejectToStage sets the stage rejected items are sent back to.
func WithRejectToStage(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.RejectToStage = name
	}
}

// WithBottlenecks overrides the stuck-stage thresholds.
func WithBottlenecks(stuckHours float64, minItems int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bottlenecks.StuckHours = stuckHours
		b.cfg.Bottlenecks.MinItems = minItems
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
