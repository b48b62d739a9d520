package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/grader/internal/domain"
)

func newReferenceCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Mint and check attempt references",
	}

	cmd.AddCommand(
		newReferenceMintCmd(load),
		newReferenceVerifyCmd(load),
		newReferenceReceiptCmd(load),
	)
	return cmd
}

func newReferenceMintCmd(load appLoader) *cobra.Command {
	var serial int64

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Print the secured reference of an attempt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = app.close(cmd.Context()) }()

			token, _, err := app.service.MintReference(cmd.Context(), serial)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().Int64Var(&serial, "serial", 0, "attempt serial id")
	_ = cmd.MarkFlagRequired("serial")
	return cmd
}

func newReferenceVerifyCmd(load appLoader) *cobra.Command {
	var toolKey string

	cmd := &cobra.Command{
		Use:   "verify <reference>",
		Short: "Resolve a secured reference to its attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = app.close(cmd.Context()) }()

			attempt, err := app.service.ResolveReference(cmd.Context(), args[0], domain.ToolKeyID(toolKey))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "serial: %d\nuser: %s\nfile: %s\ncreated: %s\n",
				attempt.SerialID,
				attempt.OriginalResourceUser.UserID,
				attempt.FileName,
				attempt.CreatedAt.Format("2006-01-02 15:04:05"),
			)
			return err
		},
	}

	cmd.Flags().StringVar(&toolKey, "tool-key", "", "tool key the reference was issued for")
	_ = cmd.MarkFlagRequired("tool-key")
	return cmd
}

func newReferenceReceiptCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <code>",
		Short: "Decode a receipt code to its attempt serial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = app.close(cmd.Context()) }()

			serial, err := app.receipts.Decode(args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), serial)
			return err
		},
	}
}
