package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/registry"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newDefinitionsCommand(ctx *commandContext) *cobra.Command {
	definitionsCmd := &cobra.Command{
		Use:   "definitions",
		Short: "Bulk stage and transition definitions",
	}

	var asJSON bool
	importCmd := &cobra.Command{
		Use:   "import <file.toml>",
		Short: "Create stages and transitions from a TOML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open definitions: %w", err)
			}
			defer file.Close()

			defs, err := registry.ParseDefinitions(file)
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, _ *store.Store) error {
				reg := engine.Registry()
				result, importErr := reg.Import(cmd.Context(), defs)
				snap, err := reg.Load(cmd.Context())
				if err != nil {
					return err
				}
				payload := struct {
					Stages      []api.Stage      `json:"stages"`
					Transitions []api.Transition `json:"transitions"`
				}{api.FromStages(result.Stages), api.FromTransitions(result.Transitions, snap)}
				if err := render(cmd, asJSON, payload, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %d stage(s) and %d transition(s)\n", len(payload.Stages), len(payload.Transitions))
					return nil
				}); err != nil {
					return err
				}
				return importErr
			})
		},
	}
	importCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	definitionsCmd.AddCommand(importCmd)
	return definitionsCmd
}
