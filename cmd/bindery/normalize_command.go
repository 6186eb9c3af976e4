package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/relocation"
)

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "normalize BOOK_ID",
		Short: "Rename a book in place to match its library pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			var outcome relocation.MoveOutcome
			if err := ctx.withRelocator(cmd, func(r relocator) error {
				var err error
				outcome, err = r.NormalizeBook(cmd.Context(), bookID)
				return err
			}); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, outcome)
			}
			out := cmd.OutOrStdout()
			location := outcome.NewFileName
			if outcome.NewSubPath != "" {
				location = outcome.NewSubPath + "/" + outcome.NewFileName
			}
			if outcome.Moved {
				fmt.Fprintf(out, "Book %d moved to %s\n", bookID, location)
			} else {
				fmt.Fprintf(out, "Book %d already in place at %s\n", bookID, location)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the outcome as JSON")
	return cmd
}
