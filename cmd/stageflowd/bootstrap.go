package main

import (
	"context"
	"fmt"
	"log/slog"

	"stageflow/internal/config"
	"stageflow/internal/daemon"
	"stageflow/internal/logging"
	"stageflow/internal/notifications"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

// run starts the daemon and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	d, logger, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	<-ctx.Done()
	logger.Info("stageflowd shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// start wires the store, engine and daemon and starts the daemon. The caller
// owns the returned daemon and must Close it.
func start(ctx context.Context, cfg *config.Config) (*daemon.Daemon, *slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open workflow database: %w", err)
	}

	d, err := daemon.New(cfg, st, buildEngine(cfg, st, logger), logger)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(ctx); err != nil {
		_ = d.Close()
		return nil, nil, fmt.Errorf("start daemon: %w", err)
	}
	return d, logger, nil
}

func buildEngine(cfg *config.Config, st *store.Store, logger *slog.Logger) *workflow.Engine {
	return workflow.New(st, workflow.SettingsFromConfig(cfg),
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithLogger(logger),
	)
}
