package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	attemptsrender "github.com/bnema/grader/internal/adapters/render/attempts"
	"github.com/bnema/grader/internal/domain"
)

func newAttemptsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Inspect recorded attempts",
	}

	cmd.AddCommand(newAttemptsListCmd(load))
	return cmd
}

func newAttemptsListCmd(load appLoader) *cobra.Command {
	var (
		toolKey    string
		asJSON     bool
		references bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attempts, optionally for one tool key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = app.close(cmd.Context()) }()

			views, err := app.service.ListAttempts(cmd.Context(), domain.ToolKeyID(toolKey))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			rendered, err := app.renderAttempts(views, attemptsrender.RenderOptions{
				ToolKey:        domain.ToolKeyID(toolKey),
				ShowReferences: references,
			})
			if err != nil {
				return fmt.Errorf("render attempts: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&toolKey, "tool-key", "", "only list attempts made through this tool key")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of the report")
	cmd.Flags().BoolVar(&references, "references", false, "print the secured reference of each attempt")
	return cmd
}
