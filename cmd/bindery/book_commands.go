package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/relocation"
)

func newBookCommand(ctx *commandContext) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Register and list books",
	}
	bookCmd.AddCommand(newBookAddCommand(ctx))
	bookCmd.AddCommand(newBookListCommand(ctx))
	return bookCmd
}

type bookFlags struct {
	libraryID   int64
	pathID      int64
	title       string
	subtitle    string
	authors     []string
	series      string
	seriesIndex string
	published   string
	publisher   string
	language    string
	isbn        string
}

func newBookAddCommand(ctx *commandContext) *cobra.Command {
	var flags bookFlags
	cmd := &cobra.Command{
		Use:   "add FILE",
		Short: "Register an existing book file that lives under a library root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.libraryID <= 0 {
				return errors.New("--library is required")
			}
			file, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve file: %w", err)
			}
			if file, err = filepath.Abs(file); err != nil {
				return fmt.Errorf("resolve file: %w", err)
			}
			info, err := os.Stat(file)
			if err != nil {
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", file)
			}

			return ctx.withStore(func(store *catalog.Store) error {
				lib, err := store.GetLibrary(cmd.Context(), flags.libraryID)
				if err != nil {
					return err
				}
				if lib == nil {
					return fmt.Errorf("library %d not found", flags.libraryID)
				}
				lp, err := pickLibraryPath(lib, flags.pathID, file)
				if err != nil {
					return err
				}
				nb := catalog.NewBook{
					LibraryID:     lib.ID,
					LibraryPathID: lp.ID,
					SubPath:       relocation.NewHelper(nil).ExtractSubPath(file, lp.Path),
					FileName:      filepath.Base(file),
					Title:         strings.TrimSpace(flags.title),
					Subtitle:      strings.TrimSpace(flags.subtitle),
					Authors:       flags.authors,
					SeriesName:    strings.TrimSpace(flags.series),
					PublishedDate: strings.TrimSpace(flags.published),
					Publisher:     strings.TrimSpace(flags.publisher),
					Language:      strings.TrimSpace(flags.language),
					ISBN:          strings.TrimSpace(flags.isbn),
				}
				if s := strings.TrimSpace(flags.seriesIndex); s != "" {
					n, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return fmt.Errorf("invalid --series-index %q", s)
					}
					nb.SeriesNumber = &n
				}
				book, err := store.CreateBook(cmd.Context(), nb)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Book %d registered: %s\n", book.ID, book.FullPath())
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&flags.libraryID, "library", 0, "Library ID the file belongs to")
	cmd.Flags().Int64Var(&flags.pathID, "path", 0, "Library path ID (defaults to the root containing FILE)")
	cmd.Flags().StringVar(&flags.title, "title", "", "Title")
	cmd.Flags().StringVar(&flags.subtitle, "subtitle", "", "Subtitle")
	cmd.Flags().StringSliceVar(&flags.authors, "author", nil, "Author (repeatable)")
	cmd.Flags().StringVar(&flags.series, "series", "", "Series name")
	cmd.Flags().StringVar(&flags.seriesIndex, "series-index", "", "Position in series, e.g. 2 or 2.5")
	cmd.Flags().StringVar(&flags.published, "published", "", "Published date")
	cmd.Flags().StringVar(&flags.publisher, "publisher", "", "Publisher")
	cmd.Flags().StringVar(&flags.language, "language", "", "Language")
	cmd.Flags().StringVar(&flags.isbn, "isbn", "", "ISBN")
	return cmd
}

// pickLibraryPath returns the requested path, or the root that contains file.
func pickLibraryPath(lib *catalog.Library, pathID int64, file string) (catalog.LibraryPath, error) {
	if pathID > 0 {
		lp, ok := lib.PathByID(pathID)
		if !ok {
			return catalog.LibraryPath{}, fmt.Errorf("path %d does not belong to library %d", pathID, lib.ID)
		}
		if !within(file, lp.Path) {
			return catalog.LibraryPath{}, fmt.Errorf("%s is not under %s", file, lp.Path)
		}
		return lp, nil
	}
	for _, lp := range lib.Paths {
		if within(file, lp.Path) {
			return lp, nil
		}
	}
	return catalog.LibraryPath{}, fmt.Errorf("%s is not under any root of library %d", file, lib.ID)
}

func within(file, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(file))
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func newBookListCommand(ctx *commandContext) *cobra.Command {
	var libraryID int64
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				books, err := store.ListBooks(cmd.Context(), libraryID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, books)
				}
				out := cmd.OutOrStdout()
				if len(books) == 0 {
					fmt.Fprintln(out, "No books")
					return nil
				}
				rows := make([][]string, 0, len(books))
				for _, b := range books {
					rows = append(rows, []string{
						strconv.FormatInt(b.ID, 10),
						strconv.FormatInt(b.LibraryID, 10),
						b.Title,
						strings.Join(b.Authors, ", "),
						b.FullPath(),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					idColumn("ID"),
					idColumn("Library"),
					textColumn("Title"),
					textColumn("Authors"),
					pathColumn("Path"),
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&libraryID, "library", 0, "Only list books in this library")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print books as JSON")
	return cmd
}
