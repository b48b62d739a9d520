package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToolsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool catalog",
	}

	cmd.AddCommand(newToolsListCmd(load))
	return cmd
}

func newToolsListCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = app.close(cmd.Context()) }()

			tools, err := app.catalog.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tRUNNER\tENABLED\tMAX USERS\tCOUNTER")
			for _, tool := range tools {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\n",
					tool.Name, tool.RunnerKind, tool.Enabled, tool.Config.MaxConcurrentUsers, tool.Counter)
			}
			return w.Flush()
		},
	}
}
