package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/directory"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newTransitionCommand(ctx *commandContext) *cobra.Command {
	transitionCmd := &cobra.Command{
		Use:   "transition",
		Short: "Manage transitions between stages",
	}
	transitionCmd.AddCommand(newTransitionAddCommand(ctx))
	transitionCmd.AddCommand(newTransitionListCommand(ctx))
	transitionCmd.AddCommand(newTransitionRemoveCommand(ctx))
	return transitionCmd
}

func newTransitionAddCommand(ctx *commandContext) *cobra.Command {
	var (
		scope     int64
		from, to  int
		role      string
		condition string
		rules     []string
		autoDelay int
		notify    bool
		template  string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Connect two stages by order",
		RunE: func(cmd *cobra.Command, args []string) error {
			requiredRole, err := directory.ParseRole(role)
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				reg := engine.Registry()
				fromStage, err := reg.StageByOrder(cmd.Context(), from, scope)
				if err != nil {
					return err
				}
				toStage, err := reg.StageByOrder(cmd.Context(), to, scope)
				if err != nil {
					return err
				}
				if fromStage == nil || toStage == nil {
					return fmt.Errorf("scope %d has no stage at order %d or %d", scope, from, to)
				}
				tr := &store.Transition{
					ScopeID:              scope,
					FromStageID:          fromStage.ID,
					ToStageID:            toStage.ID,
					RequiredRole:         requiredRole,
					ConditionScript:      strings.TrimSpace(condition),
					ValidationRules:      rules,
					NotificationRequired: notify,
					NotificationTemplate: template,
				}
				if cmd.Flags().Changed("auto-delay") {
					tr.AutoTransitionDelayMinutes = &autoDelay
				}
				created, err := reg.AddTransition(cmd.Context(), tr)
				if err != nil {
					return err
				}
				snap, err := reg.Load(cmd.Context())
				if err != nil {
					return err
				}
				dto := api.FromTransition(created, snap)
				return render(cmd, asJSON, dto, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Transition %d created: %s -> %s\n", dto.ID, dto.FromStage, dto.ToStage)
					return nil
				})
			})
		},
	}

	cmd.Flags().Int64Var(&scope, "scope", 0, "Scope id (0 for the global default)")
	cmd.Flags().IntVar(&from, "from", 0, "Order of the source stage")
	cmd.Flags().IntVar(&to, "to", 0, "Order of the target stage")
	cmd.Flags().StringVar(&role, "role", "", "Minimum role required to take the transition")
	cmd.Flags().StringVar(&condition, "condition", "", "Condition script (JSON rules)")
	cmd.Flags().StringArrayVar(&rules, "rule", nil, "Validation rule name (repeatable)")
	cmd.Flags().IntVar(&autoDelay, "auto-delay", 0, "Advance automatically after this many minutes in the source stage")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send a notification when the transition is taken")
	cmd.Flags().StringVar(&template, "template", "", "Notification template")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newTransitionListCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				reg := engine.Registry()
				transitions, err := reg.ListTransitions(cmd.Context(), all)
				if err != nil {
					return err
				}
				snap, err := reg.Load(cmd.Context())
				if err != nil {
					return err
				}
				dtos := api.FromTransitions(transitions, snap)
				return render(cmd, asJSON, dtos, func() error {
					rows := make([][]string, 0, len(dtos))
					for _, tr := range dtos {
						auto := "-"
						if tr.AutoDelayMinutes != nil {
							auto = strconv.Itoa(*tr.AutoDelayMinutes) + "m"
						}
						role := tr.RequiredRole
						if role == "" {
							role = "-"
						}
						rows = append(rows, []string{
							strconv.FormatInt(tr.ID, 10),
							strconv.FormatInt(tr.ScopeID, 10),
							fmt.Sprintf("%d %s", tr.FromOrder, tr.FromStage),
							fmt.Sprintf("%d %s", tr.ToOrder, tr.ToStage),
							role,
							yesNo(tr.Condition != ""),
							strings.Join(tr.ValidationRules, ","),
							auto,
							yesNo(tr.Active),
						})
					}
					printTable(cmd, "No transitions defined",
						[]string{"ID", "Scope", "From", "To", "Role", "Condition", "Rules", "Auto", "Active"},
						rows,
						[]columnAlignment{alignRight, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include removed transitions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTransitionRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Soft-delete a transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "transition id")
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				if err := engine.Registry().RemoveTransition(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Transition %d removed\n", id)
				return nil
			})
		},
	}
}
