package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newReportCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newValidateCommand(ctx),
		newMetricsCommand(ctx),
		newBottlenecksCommand(ctx),
	}
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var scope int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check stage and transition definitions for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				report, err := engine.ValidateWorkflowConfiguration(cmd.Context(), scope)
				if err != nil {
					return err
				}
				return render(cmd, asJSON, report, func() error {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					label := fmt.Sprintf("Scope %d", scope)
					if report.Valid() {
						fmt.Fprintln(out, renderStatusLine(label, statusOK, "workflow configuration is valid", colorize))
						return nil
					}
					fmt.Fprintln(out, renderStatusLine(label, statusWarn, fmt.Sprintf("%d warning(s)", len(report.Warnings)), colorize))
					for _, w := range report.Warnings {
						fmt.Fprintf(out, "%s- [%s] %s\n", statusIndent, w.Code, w.Message)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&scope, "scope", 0, "Scope to check (0 for global definitions)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var scope int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarize workflow throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				metrics, err := engine.GetWorkflowMetrics(cmd.Context(), scope)
				if err != nil {
					return err
				}
				return render(cmd, asJSON, metrics, func() error {
					out := cmd.OutOrStdout()
					for _, line := range renderSectionHeader("Workflow metrics", shouldColorize(out)) {
						fmt.Fprintln(out, line)
					}
					fmt.Fprintf(out, "Items:           %d total, %d active, %d completed\n", metrics.TotalItems, metrics.ActiveItems, metrics.CompletedItems)
					fmt.Fprintf(out, "Transitions:     %d (%d automatic)\n", metrics.Transitions, metrics.AutoTransitions)
					fmt.Fprintf(out, "Rejections:      %d\n", metrics.Rejections)
					fmt.Fprintf(out, "SLA violations:  %d\n", metrics.SLAViolations)
					fmt.Fprintf(out, "Average cycle:   %s\n", formatHours(metrics.AverageCycleHours))

					rows := make([][]string, 0, len(metrics.Stages))
					for _, s := range metrics.Stages {
						rows = append(rows, []string{
							strconv.Itoa(s.Order),
							s.Name,
							strconv.Itoa(s.Items),
							strconv.Itoa(s.Visits),
							formatHours(s.AverageHours),
						})
					}
					fmt.Fprintln(out)
					printTable(cmd, "No stages", []string{"Order", "Stage", "Items", "Visits", "Avg Time"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&scope, "scope", 0, "Only this scope (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newBottlenecksCommand(ctx *commandContext) *cobra.Command {
	var scope int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "bottlenecks",
		Short: "List stages where items wait too long",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				bottlenecks, err := engine.IdentifyBottlenecks(cmd.Context(), scope)
				if err != nil {
					return err
				}
				if bottlenecks == nil {
					bottlenecks = []workflow.Bottleneck{}
				}
				return render(cmd, asJSON, bottlenecks, func() error {
					colorize := shouldColorize(cmd.OutOrStdout())
					rows := make([][]string, 0, len(bottlenecks))
					for _, b := range bottlenecks {
						kind := statusWarn
						if b.Severity == workflow.SeverityHigh {
							kind = statusError
						}
						rows = append(rows, []string{
							strconv.Itoa(b.Order),
							b.Name,
							strconv.Itoa(b.Items),
							formatHours(b.AverageWaitHours),
							paint(b.Severity, statusStyles[kind].color, colorize),
						})
					}
					printTable(cmd, "No bottlenecks detected", []string{"Order", "Stage", "Items", "Avg Wait", "Severity"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignRight, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&scope, "scope", 0, "Only this scope (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
