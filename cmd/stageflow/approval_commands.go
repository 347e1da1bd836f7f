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

func newApprovalCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newApprovalDecisionCommand(ctx, true),
		newApprovalDecisionCommand(ctx, false),
		newApprovalsCommand(ctx),
	}
}

func newApprovalDecisionCommand(ctx *commandContext, approve bool) *cobra.Command {
	var comment string
	var asJSON bool

	use, short := "approve <item-id>", "Approve a work item waiting in an approval stage"
	if !approve {
		use, short = "reject <item-id>", "Reject a work item waiting in an approval stage"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
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
				result, err := engine.ProcessApprovalWorkflow(cmd.Context(), item, actorID, approve, comment)
				if err != nil {
					return err
				}
				snap, err := engine.Registry().Load(cmd.Context())
				if err != nil {
					return err
				}
				stage := snap.StageByOrder(result.Item.CurrentStage, result.Item.ScopeID)
				dto := api.FromApprovalResult(result, stage, time.Now())
				return render(cmd, asJSON, dto, func() error {
					out := cmd.OutOrStdout()
					verb := "approved"
					if !dto.Approved {
						verb = "rejected"
					}
					if dto.Moved {
						fmt.Fprintf(out, "Item %d %s: %s -> %s\n", dto.Item.ID, verb, dto.FromStage, dto.ToStage)
					} else {
						fmt.Fprintf(out, "Item %d %s; it stays in %s\n", dto.Item.ID, verb, dto.FromStage)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Comment recorded with the decision")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newApprovalsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List work items the acting user may approve",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := ctx.actor()
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				pending, err := engine.GetPendingApprovals(cmd.Context(), actorID)
				if err != nil {
					return err
				}
				dtos := api.FromPendingApprovals(pending, time.Now())
				return render(cmd, asJSON, dtos, func() error {
					colorize := shouldColorize(cmd.OutOrStdout())
					rows := make([][]string, 0, len(dtos))
					for _, p := range dtos {
						state := ""
						if p.Item.SLA != nil {
							state = p.Item.SLA.State
						}
						rows = append(rows, []string{
							strconv.FormatInt(p.Item.ID, 10),
							truncate(p.Item.Title, 40),
							p.Item.StageName,
							p.Item.PriorityLevel,
							formatHours(p.WaitingHours),
							renderSLAState(state, colorize),
						})
					}
					printTable(cmd, "No approvals pending",
						[]string{"ID", "Title", "Stage", "Priority", "Waiting", "SLA"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
