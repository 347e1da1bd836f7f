package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stageflow/internal/daemon"
	"stageflow/internal/preflight"
)

type doctorReport struct {
	Checks        []preflight.Result `json:"checks"`
	DaemonRunning bool               `json:"daemonRunning"`
	Healthy       bool               `json:"healthy"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, database, notifications and daemon state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			running, lockErr := daemon.Locked(cfg.LockPath())
			report := doctorReport{
				Checks:        results,
				DaemonRunning: running,
				Healthy:       len(preflight.Failed(results)) == 0,
			}

			if err := render(cmd, asJSON, report, func() error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					kind := statusOK
					switch {
					case !r.Passed && r.Optional:
						kind = statusWarn
					case !r.Passed:
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
				switch {
				case lockErr != nil:
					fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, lockErr.Error(), colorize))
				case running:
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
				}
				return nil
			}); err != nil {
				return err
			}
			if !report.Healthy {
				return fmt.Errorf("%d required check(s) failed", len(preflight.Failed(results)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
