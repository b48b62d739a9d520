package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

// appLoader wires the application after flags are parsed.
type appLoader func() (*app, error)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "grader",
		Short:         "Submission grader: admit, grade and record deliveries",
		Long:          "grader receives file deliveries for configured tools, runs their correctors under admission limits, records every attempt and reports outcomes upstream.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to grader.toml (default $HOME/.grader/grader.toml)")

	load := func() (*app, error) {
		return wireApp(configPath)
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(load),
		newAttemptsCmd(load),
		newToolsCmd(load),
		newReferenceCmd(load),
	)

	return rootCmd
}
