package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/priority"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newItemCommand(ctx *commandContext) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Create and inspect work items",
	}
	itemCmd.AddCommand(newItemCreateCommand(ctx))
	itemCmd.AddCommand(newItemListCommand(ctx))
	itemCmd.AddCommand(newItemShowCommand(ctx))
	return itemCmd
}

func newItemCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		title       string
		description string
		owner       string
		scope       int64
		score       float64
		level       string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work item in the first stage of its scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := ctx.actor()
			if err != nil {
				return err
			}
			if strings.TrimSpace(level) != "" {
				parsed, err := priority.ParseLevel(level)
				if err != nil {
					return err
				}
				score = parsed.Floor()
			}
			if owner == "" {
				owner = actorID
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				item, err := engine.CreateItem(cmd.Context(), workflow.NewItem{
					Title:       title,
					Description: description,
					OwnerID:     owner,
					ScopeID:     scope,
					Priority:    score,
				}, actorID)
				if err != nil {
					return err
				}
				state, err := engine.GetWorkflowState(cmd.Context(), item.ID)
				if err != nil {
					return err
				}
				dto := api.FromState(state, time.Now())
				return render(cmd, asJSON, dto.Item, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Work item %d created in stage %s\n", item.ID, dto.Item.StageName)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Item title")
	cmd.Flags().StringVar(&description, "description", "", "Item description")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id (defaults to the acting user)")
	cmd.Flags().Int64Var(&scope, "scope", 0, "Scope id")
	cmd.Flags().Float64Var(&score, "priority", 0, "Priority score between 0 and 1")
	cmd.Flags().StringVar(&level, "level", "", "Priority level (low, medium, high, critical); overrides --priority")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func newItemListCommand(ctx *commandContext) *cobra.Command {
	var (
		scope  int64
		status string
		stage  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ItemFilter{ScopeID: scope}
			if s := strings.TrimSpace(status); s != "" {
				filter.Statuses = []store.Status{store.Status(strings.ToLower(s))}
			}
			if cmd.Flags().Changed("stage") {
				filter.Stage = &stage
			}
			return ctx.withEngine(func(engine *workflow.Engine, st *store.Store) error {
				items, err := st.ListWorkItems(cmd.Context(), filter)
				if err != nil {
					return err
				}
				snap, err := engine.Registry().Load(cmd.Context())
				if err != nil {
					return err
				}
				dtos := api.FromWorkItems(items, snap, time.Now())
				return render(cmd, asJSON, dtos, func() error {
					rows := make([][]string, 0, len(dtos))
					for _, item := range dtos {
						rows = append(rows, []string{
							strconv.FormatInt(item.ID, 10),
							strconv.FormatInt(item.ScopeID, 10),
							truncate(item.Title, 40),
							fmt.Sprintf("%d %s", item.Stage, item.StageName),
							item.PriorityLevel,
							item.Status,
							formatHours(item.TimeInStageHours),
						})
					}
					printTable(cmd, "No work items found",
						[]string{"ID", "Scope", "Title", "Stage", "Priority", "Status", "In Stage"},
						rows,
						[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&scope, "scope", 0, "Only items in this scope (0 for all)")
	cmd.Flags().StringVar(&status, "status", "", "Only items with this status (active or completed)")
	cmd.Flags().IntVar(&stage, "stage", 0, "Only items at this stage order")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newItemShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item with its SLA position and next stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "item id")
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				state, err := engine.GetWorkflowState(cmd.Context(), id)
				if err != nil {
					return err
				}
				dto := api.FromState(state, time.Now())
				return render(cmd, asJSON, dto, func() error {
					renderItemState(cmd, dto)
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderItemState(cmd *cobra.Command, state api.ItemState) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	item := state.Item

	for _, line := range renderSectionHeader(fmt.Sprintf("Item %d", item.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Title:       %s\n", item.Title)
	if item.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", item.Description)
	}
	fmt.Fprintf(out, "Owner:       %s\n", item.OwnerID)
	fmt.Fprintf(out, "Scope:       %d\n", item.ScopeID)
	fmt.Fprintf(out, "Stage:       %d %s\n", item.Stage, item.StageName)
	fmt.Fprintf(out, "Priority:    %s (%.2f)\n", item.PriorityLevel, item.Priority)
	fmt.Fprintf(out, "Status:      %s\n", item.Status)
	fmt.Fprintf(out, "In stage:    %s\n", formatHours(item.TimeInStageHours))
	if item.SLA != nil {
		line := renderSLAState(item.SLA.State, colorize)
		if item.SLA.Deadline != "" {
			line += fmt.Sprintf(" (deadline %s, %s remaining)", item.SLA.Deadline, formatHours(item.SLA.RemainingHours))
		}
		fmt.Fprintf(out, "SLA:         %s\n", line)
	}
	if state.AwaitingApproval {
		fmt.Fprintln(out, "Approval:    pending")
	}
	if state.Terminal {
		fmt.Fprintln(out, "Next:        none (terminal stage)")
		return
	}
	names := make([]string, 0, len(state.Targets))
	for _, target := range state.Targets {
		names = append(names, fmt.Sprintf("%d %s", target.Order, target.Name))
	}
	if len(names) == 0 {
		names = append(names, "none")
	}
	fmt.Fprintf(out, "Next:        %s\n", strings.Join(names, ", "))
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
