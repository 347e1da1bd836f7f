package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stageflow/internal/directory"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newActorCommand(ctx *commandContext) *cobra.Command {
	actorCmd := &cobra.Command{
		Use:   "actor",
		Short: "Manage the actor directory",
	}
	actorCmd.AddCommand(newActorAddCommand(ctx))
	actorCmd.AddCommand(newActorListCommand(ctx))
	return actorCmd
}

func newActorAddCommand(ctx *commandContext) *cobra.Command {
	var name, role, email string

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create or update an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := directory.ParseRole(role)
			if err != nil {
				return err
			}
			if parsed == directory.RoleNone || parsed == directory.RoleSystem {
				return fmt.Errorf("role %q cannot be assigned to an actor", role)
			}
			actor := directory.Actor{ID: args[0], Name: name, Role: parsed, Email: email}
			return ctx.withEngine(func(_ *workflow.Engine, st *store.Store) error {
				if err := st.UpsertActor(cmd.Context(), actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Actor %s saved with role %s\n", actor.ID, actor.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", "", "Role: viewer, contributor, reviewer, manager, or admin")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newActorListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(_ *workflow.Engine, st *store.Store) error {
				actors, err := st.ListActors(cmd.Context())
				if err != nil {
					return err
				}
				if actors == nil {
					actors = []directory.Actor{}
				}
				return render(cmd, asJSON, actors, func() error {
					rows := make([][]string, 0, len(actors))
					for _, a := range actors {
						rows = append(rows, []string{a.ID, a.Name, string(a.Role), a.Email})
					}
					printTable(cmd, "No actors defined", []string{"ID", "Name", "Role", "Email"}, rows, nil)
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
