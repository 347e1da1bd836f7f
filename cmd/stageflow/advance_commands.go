package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newAdvanceCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAdvanceCommand(ctx),
		newCanAdvanceCommand(ctx),
		newAvailableCommand(ctx),
	}
}

func newAdvanceCommand(ctx *commandContext) *cobra.Command {
	var comment string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "advance <item-id> <stage-order>",
		Short: "Move a work item to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseOrder(args[1])
			if err != nil {
				return err
			}
			actorID, err := ctx.actor()
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				item, err := loadItem(cmd.Context(), engine, args[0])
				if err != nil {
					return err
				}
				updated, err := engine.Advance(cmd.Context(), item, target, actorID, comment)
				if err != nil {
					return err
				}
				state, err := engine.GetWorkflowState(cmd.Context(), updated.ID)
				if err != nil {
					return err
				}
				dto := api.FromState(state, time.Now())
				return render(cmd, asJSON, dto.Item, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d moved to %d %s\n", dto.Item.ID, dto.Item.Stage, dto.Item.StageName)
					if dto.Item.Status == string(store.StatusCompleted) {
						fmt.Fprintln(cmd.OutOrStdout(), "Workflow completed")
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Comment recorded in the audit trail")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCanAdvanceCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "can-advance <item-id> <stage-order>",
		Short: "Explain whether a work item may move to a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseOrder(args[1])
			if err != nil {
				return err
			}
			actorID, err := ctx.actor()
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				item, err := loadItem(cmd.Context(), engine, args[0])
				if err != nil {
					return err
				}
				decision, err := engine.Check(cmd.Context(), item, target, actorID)
				if err != nil {
					return err
				}
				dto := api.FromDecision(item.ID, target, decision)
				return render(cmd, asJSON, dto, func() error {
					renderDecision(cmd, actorID, dto)
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderDecision(cmd *cobra.Command, actorID string, d api.Decision) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	kind, message := statusOK, "allowed"
	if !d.Allowed {
		kind, message = statusError, "denied by "+d.Gate+" check"
	}
	label := fmt.Sprintf("Item %d -> %d", d.ItemID, d.Target)
	fmt.Fprintln(out, renderStatusLine(label, kind, fmt.Sprintf("%s for %s", message, actorID), colorize))
	for _, reason := range d.Reasons {
		fmt.Fprintf(out, "%s- %s\n", statusIndent, reason)
	}
	for _, warning := range d.Warnings {
		fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, warning, colorize))
	}
}

func newAvailableCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "available <item-id>",
		Short: "List the stages the acting user may move a work item to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := ctx.actor()
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				item, err := loadItem(cmd.Context(), engine, args[0])
				if err != nil {
					return err
				}
				stages, err := engine.GetAvailableTransitions(cmd.Context(), item, actorID)
				if err != nil {
					return err
				}
				dtos := api.FromStages(stages)
				return render(cmd, asJSON, dtos, func() error {
					rows := make([][]string, 0, len(dtos))
					for _, s := range dtos {
						rows = append(rows, []string{strconv.Itoa(s.Order), s.Name, yesNo(s.ApprovalRequired), formatOptionalHours(s.SLAHours)})
					}
					printTable(cmd, fmt.Sprintf("No transitions available to %s", actorID),
						[]string{"Order", "Stage", "Approval", "SLA"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func loadItem(ctx context.Context, engine *workflow.Engine, arg string) (*store.WorkItem, error) {
	id, err := parseID(strings.TrimSpace(arg), "item id")
	if err != nil {
		return nil, err
	}
	return engine.GetItem(ctx, id)
}
