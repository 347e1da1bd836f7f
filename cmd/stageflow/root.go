package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var actorFlag string

	ctx := newCommandContext(&configFlag, &actorFlag)

	rootCmd := &cobra.Command{
		Use:           "stageflow",
		Short:         "Stage-based workflow engine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Acting user id (defaults to $STAGEFLOW_ACTOR or $USER)")

	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newStageCommand(ctx))
	rootCmd.AddCommand(newTransitionCommand(ctx))
	rootCmd.AddCommand(newDefinitionsCommand(ctx))
	rootCmd.AddCommand(newActorCommand(ctx))
	rootCmd.AddCommand(newItemCommand(ctx))
	for _, cmd := range newAdvanceCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range newApprovalCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newSLACommand(ctx))
	rootCmd.AddCommand(newViolationsCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))
	for _, cmd := range newReportCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newDaemonCommand(ctx))

	return rootCmd
}
