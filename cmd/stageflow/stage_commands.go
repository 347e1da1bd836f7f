package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/directory"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage workflow stages",
	}
	stageCmd.AddCommand(newStageAddCommand(ctx))
	stageCmd.AddCommand(newStageListCommand(ctx))
	stageCmd.AddCommand(newStageRemoveCommand(ctx))
	return stageCmd
}

func newStageAddCommand(ctx *commandContext) *cobra.Command {
	var (
		scope        int64
		order        int
		name         string
		approval     bool
		approverRole string
		slaHours     float64
		terminal     bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Define a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := directory.ParseRole(approverRole)
			if err != nil {
				return err
			}
			stage := &store.Stage{
				ScopeID:          scope,
				Order:            order,
				Name:             name,
				ApprovalRequired: approval,
				ApproverRole:     role,
				Terminal:         terminal,
			}
			if cmd.Flags().Changed("sla-hours") {
				stage.SLAHours = &slaHours
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				created, err := engine.Registry().AddStage(cmd.Context(), stage)
				if err != nil {
					return err
				}
				return render(cmd, asJSON, api.FromStage(created), func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Stage %d created: %s (order %d, scope %d)\n", created.ID, created.Name, created.Order, created.ScopeID)
					return nil
				})
			})
		},
	}

	cmd.Flags().Int64Var(&scope, "scope", 0, "Scope id (0 for the global default)")
	cmd.Flags().IntVar(&order, "order", 0, "Position of the stage in the workflow")
	cmd.Flags().StringVar(&name, "name", "", "Stage name")
	cmd.Flags().BoolVar(&approval, "approval", false, "Require an approval decision to leave the stage")
	cmd.Flags().StringVar(&approverRole, "approver-role", "", "Minimum role allowed to decide approvals")
	cmd.Flags().Float64Var(&slaHours, "sla-hours", 0, "Time budget for the stage in hours")
	cmd.Flags().BoolVar(&terminal, "terminal", false, "Mark the stage as a completion stage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStageListCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				stages, err := engine.Registry().ListStages(cmd.Context(), all)
				if err != nil {
					return err
				}
				dtos := api.FromStages(stages)
				return render(cmd, asJSON, dtos, func() error {
					rows := make([][]string, 0, len(dtos))
					for _, s := range dtos {
						rows = append(rows, []string{
							strconv.FormatInt(s.ID, 10),
							strconv.FormatInt(s.ScopeID, 10),
							strconv.Itoa(s.Order),
							s.Name,
							yesNo(s.ApprovalRequired),
							formatOptionalHours(s.SLAHours),
							yesNo(s.Terminal),
							yesNo(s.Active),
						})
					}
					printTable(cmd, "No stages defined",
						[]string{"ID", "Scope", "Order", "Name", "Approval", "SLA", "Terminal", "Active"},
						rows,
						[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include removed stages")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newStageRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Soft-delete a stage and its transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "stage id")
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				if err := engine.Registry().RemoveStage(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stage %d removed\n", id)
				return nil
			})
		},
	}
}

func formatOptionalHours(hours *float64) string {
	if hours == nil {
		return "-"
	}
	return formatHours(*hours)
}

func formatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64) + "h"
}
