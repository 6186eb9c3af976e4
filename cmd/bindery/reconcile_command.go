package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bindery/internal/relocation"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Finish or roll back moves interrupted mid-batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report relocation.ReconcileReport
			if err := ctx.withRelocator(cmd, func(r relocator) error {
				var err error
				report, err = r.Reconcile(cmd.Context())
				return err
			}); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			if len(report.Entries) == 0 {
				fmt.Fprintln(out, "Nothing to reconcile")
				return nil
			}
			rows := make([][]string, 0, len(report.Entries))
			for _, entry := range report.Entries {
				book := ""
				if entry.BookID > 0 {
					book = strconv.FormatInt(entry.BookID, 10)
				}
				rows = append(rows, []string{entry.TempPath, book, string(entry.Resolution), entry.Message})
			}
			fmt.Fprintln(out, renderTable([]column{
				pathColumn("Staged File"),
				idColumn("Book"),
				textColumn("Resolution"),
				textColumn("Detail"),
			}, rows))
			if failed := report.Count(relocation.ResolutionFailed); failed > 0 {
				return fmt.Errorf("%d staged file(s) could not be reconciled", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}
