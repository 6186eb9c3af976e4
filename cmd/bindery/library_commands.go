package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/catalog"
	"bindery/internal/config"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Manage libraries and their root paths",
	}
	libraryCmd.AddCommand(newLibraryAddCommand(ctx))
	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	libraryCmd.AddCommand(newLibraryAddPathCommand(ctx))
	libraryCmd.AddCommand(newLibrarySetPatternCommand(ctx))
	return libraryCmd
}

func newLibraryAddCommand(ctx *commandContext) *cobra.Command {
	var pattern string
	var roots []string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				lib, err := store.CreateLibrary(cmd.Context(), args[0], strings.TrimSpace(pattern))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Library %d created: %s\n", lib.ID, lib.Name)
				for _, root := range roots {
					lp, err := addRoot(cmd, store, lib.ID, root)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  path %d: %s\n", lp.ID, lp.Path)
				}
				ctx.notifyWatch(lib.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Naming pattern (defaults to library.default_pattern)")
	cmd.Flags().StringSliceVar(&roots, "path", nil, "Root directory (repeatable)")
	return cmd
}

func newLibraryAddPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-path LIBRARY_ID DIR",
		Short: "Add a root directory to a library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			libraryID, err := parseID("library", args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				lp, err := addRoot(cmd, store, libraryID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Library %d path %d: %s\n", libraryID, lp.ID, lp.Path)
				ctx.notifyWatch(libraryID)
				return nil
			})
		},
	}
}

func addRoot(cmd *cobra.Command, store *catalog.Store, libraryID int64, root string) (*catalog.LibraryPath, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(root))
	if err != nil {
		return nil, fmt.Errorf("resolve path %q: %w", root, err)
	}
	return store.AddLibraryPath(cmd.Context(), libraryID, expanded)
}

func newLibrarySetPatternCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-pattern LIBRARY_ID PATTERN",
		Short: "Set a library's naming pattern (empty string clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			libraryID, err := parseID("library", args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.SetLibraryPattern(cmd.Context(), libraryID, strings.TrimSpace(args[1])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Library %d pattern updated\n", libraryID)
				return nil
			})
		},
	}
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				libs, err := store.ListLibraries(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, libs)
				}
				out := cmd.OutOrStdout()
				if len(libs) == 0 {
					fmt.Fprintln(out, "No libraries")
					return nil
				}
				defaultPattern, _ := store.DefaultPattern(cmd.Context())
				rows := make([][]string, 0, len(libs))
				for _, lib := range libs {
					pattern := lib.FileNamingPattern
					if pattern == "" {
						pattern = "(default) " + defaultPattern
					}
					paths := make([]string, 0, len(lib.Paths))
					for _, p := range lib.Paths {
						paths = append(paths, fmt.Sprintf("%d: %s", p.ID, p.Path))
					}
					rows = append(rows, []string{
						strconv.FormatInt(lib.ID, 10),
						lib.Name,
						pattern,
						strings.Join(paths, "\n"),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					idColumn("ID"),
					textColumn("Name"),
					textColumn("Pattern"),
					pathColumn("Paths"),
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print libraries as JSON")
	return cmd
}
