package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stageflow/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the stageflow configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Define stages with `stageflow definitions import` before creating items.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination file (defaults to the user config location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(raw string) (string, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		path, err := config.ExpandPath(raw)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return path, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report the resolved settings",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := config.Load(strings.TrimSpace(*ctx.configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			describeConfig(cmd.OutOrStdout(), cfg, path, exists)
			return nil
		},
	}
}

func describeConfig(out io.Writer, cfg *config.Config, path string, exists bool) {
	source := path
	if !exists {
		source = path + " (not found, using defaults)"
	}
	topic := cfg.Notifications.NtfyTopic
	if topic == "" {
		topic = "disabled"
	}
	fmt.Fprintf(out, "Config:        %s\n", source)
	fmt.Fprintf(out, "Database:      %s\n", cfg.DatabasePath())
	fmt.Fprintf(out, "Auto sweep:    %s\n", cfg.Workflow.AutoTransitionSchedule)
	fmt.Fprintf(out, "Escalations:   %s\n", cfg.Workflow.EscalationSchedule)
	fmt.Fprintf(out, "At-risk ratio: %.2f\n", cfg.SLA.AtRiskRatio)
	fmt.Fprintf(out, "Notifications: %s\n", topic)
	fmt.Fprintln(out, "Configuration valid")
}
