package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a background sweep once",
	}

	var autoJSON bool
	autoCmd := &cobra.Command{
		Use:   "auto",
		Short: "Advance items whose auto transitions are due",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				report, err := engine.ProcessAutoTransitions(cmd.Context())
				if err != nil {
					return err
				}
				return renderSweep(cmd, autoJSON, api.FromAutoSweep(report))
			})
		},
	}
	autoCmd.Flags().BoolVar(&autoJSON, "json", false, "Output as JSON")

	var scope int64
	var escalationJSON bool
	escalationCmd := &cobra.Command{
		Use:   "escalations",
		Short: "Escalate new SLA violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				report, err := engine.ProcessSLANotifications(cmd.Context(), scope)
				if err != nil {
					return err
				}
				return renderSweep(cmd, escalationJSON, api.FromEscalationSweep(report))
			})
		},
	}
	escalationCmd.Flags().Int64Var(&scope, "scope", 0, "Only this scope (0 for all)")
	escalationCmd.Flags().BoolVar(&escalationJSON, "json", false, "Output as JSON")

	sweepCmd.AddCommand(autoCmd, escalationCmd)
	return sweepCmd
}

func renderSweep(cmd *cobra.Command, asJSON bool, result api.SweepResult) error {
	return render(cmd, asJSON, result, func() error {
		out := cmd.OutOrStdout()
		switch result.Sweep {
		case "escalations":
			fmt.Fprintf(out, "Scanned %d item(s): %d escalated, %d already escalated, %d failed\n",
				result.Scanned, result.Escalated, result.Duplicates, result.Failed)
		default:
			fmt.Fprintf(out, "Scanned %d item(s): %d advanced, %d failed\n",
				result.Scanned, result.Advanced, result.Failed)
		}
		return nil
	})
}
