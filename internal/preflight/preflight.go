package preflight

import (
	"context"
	"fmt"

	"bindery/internal/catalog"
	"bindery/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// LibraryLister is the catalog view needed to check library roots.
type LibraryLister interface {
	ListLibraries(ctx context.Context) ([]*catalog.Library, error)
}

// RunAll executes all applicable preflight checks for the given config.
// Library roots are only checked when libs is non-nil.
func RunAll(ctx context.Context, cfg *config.Config, libs LibraryLister) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if libs != nil {
		results = append(results, CheckLibraryRoots(ctx, libs)...)
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}

// CheckLibraryRoots checks every root of every library.
func CheckLibraryRoots(ctx context.Context, libs LibraryLister) []Result {
	libraries, err := libs.ListLibraries(ctx)
	if err != nil {
		return []Result{{Name: "Libraries", Detail: fmt.Sprintf("list libraries: %v", err)}}
	}
	var results []Result
	for _, lib := range libraries {
		if len(lib.Paths) == 0 {
			results = append(results, Result{Name: "Library " + lib.Name, Detail: "no paths configured"})
			continue
		}
		for _, p := range lib.Paths {
			results = append(results, CheckDirectoryAccess("Library "+lib.Name, p.Path))
		}
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
