package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var storeFlag string
	var dirFlag string
	var dbFlag string
	var verboseFlag bool

	ctx := newCommandContext(&configFlag, &storeFlag, &dirFlag, &dbFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           "uilens",
		Short:         "Extract a design system from a live URL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Checkpoint store backend: fs or sqlite")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "Checkpoint directory for the fs backend")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Database path for the sqlite backend")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newResumeCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newAdviseCommand(ctx))

	return rootCmd
}
