package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"bindery/internal/relocation"
)

func newMoveCommand(ctx *commandContext) *cobra.Command {
	var books, libraries, paths []int64
	var file string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Relocate books into library paths",
		Long: `Relocate books into library paths.

Pass --book with a matching --library and --path per book, or a single
--library/--path applied to every book. Alternatively pass --file with a TOML
document holding [[moves]] tables of book_id, library_id, and path_id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req relocation.Request
			var err error
			if strings.TrimSpace(file) != "" {
				if len(books) > 0 {
					return errors.New("use either --file or --book, not both")
				}
				req, err = loadMoveFile(file)
			} else {
				req.Moves, err = buildMoves(books, libraries, paths)
			}
			if err != nil {
				return err
			}

			var result relocation.BatchResult
			if err := ctx.withRelocator(cmd, func(r relocator) error {
				var err error
				result, err = r.MoveBooks(cmd.Context(), req)
				return err
			}); err != nil {
				return err
			}

			if jsonOut {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				renderBatch(cmd.OutOrStdout(), result)
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d move(s) failed", result.Failed, len(result.Items))
			}
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&books, "book", nil, "Book ID to move (repeatable)")
	cmd.Flags().Int64SliceVar(&libraries, "library", nil, "Target library ID (once, or once per book)")
	cmd.Flags().Int64SliceVar(&paths, "path", nil, "Target library path ID (once, or once per book)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "TOML file listing moves")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the batch result as JSON")
	return cmd
}

// buildMoves pairs book ids with targets. A single library or path id
// applies to every book.
func buildMoves(books, libraries, paths []int64) ([]relocation.Move, error) {
	if len(books) == 0 {
		return nil, errors.New("at least one --book is required")
	}
	pick := func(name string, values []int64, i int) (int64, error) {
		switch len(values) {
		case 1:
			return values[0], nil
		case len(books):
			return values[i], nil
		case 0:
			return 0, fmt.Errorf("--%s is required", name)
		default:
			return 0, fmt.Errorf("--%s given %d times for %d books", name, len(values), len(books))
		}
	}
	moves := make([]relocation.Move, 0, len(books))
	for i, bookID := range books {
		libraryID, err := pick("library", libraries, i)
		if err != nil {
			return nil, err
		}
		pathID, err := pick("path", paths, i)
		if err != nil {
			return nil, err
		}
		moves = append(moves, relocation.Move{BookID: bookID, TargetLibraryID: libraryID, TargetLibraryPathID: pathID})
	}
	return moves, nil
}

func loadMoveFile(path string) (relocation.Request, error) {
	var req relocation.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read move file: %w", err)
	}
	if err := toml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse move file: %w", err)
	}
	if len(req.Moves) == 0 {
		return req, fmt.Errorf("move file %s lists no moves", path)
	}
	return req, nil
}

func renderBatch(out io.Writer, result relocation.BatchResult) {
	rows := make([][]string, 0, len(result.Items))
	for _, item := range result.Items {
		detail := item.Reason
		if item.Message != "" {
			if detail != "" {
				detail += ": "
			}
			detail += item.Message
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.BookID, 10),
			string(item.State),
			item.OldPath,
			item.NewPath,
			detail,
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]column{
			idColumn("Book"),
			textColumn("State"),
			pathColumn("From"),
			pathColumn("To"),
			textColumn("Detail"),
		}, rows))
	}
	fmt.Fprintf(out, "Moved: %d  Skipped: %d  Failed: %d  (%s)\n",
		result.Moved, result.Skipped, result.Failed, result.Duration.Round(time.Millisecond))
	if result.NeedsReconciliation() {
		fmt.Fprintln(out, "Some files are still staged; run `bindery reconcile` to finish them.")
	}
}
