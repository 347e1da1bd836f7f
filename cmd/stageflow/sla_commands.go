package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newSLACommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sla <item-id>",
		Short: "Show the SLA position of a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				item, err := loadItem(cmd.Context(), engine, args[0])
				if err != nil {
					return err
				}
				status, err := engine.GetSLAStatus(cmd.Context(), item)
				if err != nil {
					return err
				}
				dto := api.FromSLAStatus(status)
				return render(cmd, asJSON, dto, func() error {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Item %d", item.ID), slaKind(dto.State), dto.State, colorize))
					if dto.Deadline == "" {
						return nil
					}
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Budget:", formatHours(dto.SLAHours))
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Elapsed:", formatHours(dto.ElapsedHours))
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Remaining:", formatHours(dto.RemainingHours))
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Deadline:", dto.Deadline)
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newViolationsCommand(ctx *commandContext) *cobra.Command {
	var scope int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "violations",
		Short: "List active work items past their stage SLA",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				violations, err := engine.GetSLAViolations(cmd.Context(), scope)
				if err != nil {
					return err
				}
				dtos := api.FromViolations(violations, time.Now())
				return render(cmd, asJSON, dtos, func() error {
					rows := make([][]string, 0, len(dtos))
					for _, v := range dtos {
						deadline := ""
						if v.Item.SLA != nil {
							deadline = v.Item.SLA.Deadline
						}
						rows = append(rows, []string{
							strconv.FormatInt(v.Item.ID, 10),
							strconv.FormatInt(v.Item.ScopeID, 10),
							truncate(v.Item.Title, 40),
							v.Item.StageName,
							v.Item.PriorityLevel,
							deadline,
							formatHours(v.OverdueHours),
						})
					}
					printTable(cmd, "No SLA violations",
						[]string{"ID", "Scope", "Title", "Stage", "Priority", "Deadline", "Overdue"}, rows,
						[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&scope, "scope", 0, "Only this scope (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
