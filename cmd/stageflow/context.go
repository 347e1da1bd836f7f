package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"stageflow/internal/config"
	"stageflow/internal/flowerr"
	"stageflow/internal/logging"
	"stageflow/internal/notifications"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

type commandContext struct {
	configFlag *string
	actorFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	store  *store.Store
	engine *workflow.Engine
}

func newCommandContext(configFlag, actorFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		actorFlag:  actorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withEngine opens the database on first use and hands the engine to fn.
func (c *commandContext) withEngine(fn func(*workflow.Engine, *store.Store) error) error {
	if c.engine == nil {
		cfg, err := c.ensureConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg)
		if err != nil {
			return fmt.Errorf("open workflow database: %w", err)
		}
		logger, err := logging.New(logging.Options{
			Level:       "warn",
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stderr"},
		})
		if err != nil {
			_ = st.Close()
			return fmt.Errorf("init logging: %w", err)
		}
		c.store = st
		c.engine = workflow.New(st, workflow.SettingsFromConfig(cfg),
			workflow.WithNotifier(notifications.NewService(cfg)),
			workflow.WithLogger(logger),
		)
	}
	return fn(c.engine, c.store)
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	c.engine = nil
	return err
}

// actor resolves the acting user from --actor, then the environment.
func (c *commandContext) actor() (string, error) {
	id := c.rawActor()
	if id == "" {
		return "", errors.New("no actor given; pass --actor or set STAGEFLOW_ACTOR")
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	// The system identity outranks every role and marks automatic moves in
	// the audit trail, so people never act as it.
	if strings.EqualFold(id, cfg.Workflow.SystemActor) {
		return "", flowerr.Wrap(flowerr.ErrTransitionNotAllowed, "cli", "resolve actor",
			fmt.Sprintf("%q is the automation identity and cannot be used from the CLI", id), nil)
	}
	return id, nil
}

func (c *commandContext) rawActor() string {
	if c.actorFlag != nil {
		if value := strings.TrimSpace(*c.actorFlag); value != "" {
			return value
		}
	}
	for _, key := range []string{"STAGEFLOW_ACTOR", "USER"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// skipConfigAnnotation marks commands that load configuration themselves or
// need none.
const skipConfigAnnotation = "skipConfigLoad"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func parseID(value, label string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", label, value)
	}
	return id, nil
}

func parseOrder(value string) (int, error) {
	order, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || order <= 0 {
		return 0, fmt.Errorf("invalid stage order %q", value)
	}
	return order, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
