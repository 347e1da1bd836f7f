package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stageflow/internal/daemonctl"
)

const daemonBinary = "stageflowd"

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the stageflowd sweep daemon",
	}

	var wait time.Duration
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			executable, err := resolveDaemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cfg, executable, strings.TrimSpace(*ctx.configFlag), wait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.State == daemonctl.StartStateAlreadyRunning {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			return nil
		},
	}
	startCmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the daemon to come up")

	var grace time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cfg, grace)
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.Forced {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon (pid %d) killed after %s\n", result.PID, grace)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "Time to wait after SIGTERM before killing")

	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status := daemonctl.Status(cmd.Context(), cfg)
			return render(cmd, asJSON, status, func() error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if status.Running {
					msg := "running"
					if status.PID > 0 {
						msg = fmt.Sprintf("running (pid %d)", status.PID)
					}
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, msg, colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
				if status.MetricsBind != "" {
					fmt.Fprintln(out, renderStatusLine("HTTP", statusInfo, status.MetricsBind, colorize))
				}
				names := make([]string, 0, len(status.NextRuns))
				for name := range status.NextRuns {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintln(out, renderStatusLine("Next "+name, statusInfo, status.NextRuns[name], colorize))
				}
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	daemonCmd.AddCommand(startCmd, stopCmd, statusCmd)
	return daemonCmd
}

// resolveDaemonExecutable prefers a stageflowd next to this binary.
func resolveDaemonExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), daemonBinary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(daemonBinary)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", daemonBinary, err)
	}
	return path, nil
}
