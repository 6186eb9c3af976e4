package relocation

import (
	"os"
	"path/filepath"
	"strings"

	"bindery/internal/logging"
)

// CleanupEmptyAncestors removes startDir and its parents while they contain
// nothing but ignorable artifacts. The climb stops at any of roots (compared
// by file identity), at a directory outside every root, at a directory that
// cannot be read or removed, and at the first directory with real content.
// Roots themselves are never removed.
func (h *Helper) CleanupEmptyAncestors(startDir string, roots []string) {
	dir, err := filepath.Abs(filepath.Clean(startDir))
	if err != nil {
		return
	}
	cleanedRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		if root = strings.TrimSpace(root); root == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Clean(root))
		if err != nil {
			continue
		}
		cleanedRoots = append(cleanedRoots, abs)
	}

	for {
		if isRoot(dir, cleanedRoots) || !withinAnyRoot(dir, cleanedRoots) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.WarnWithContext(h.logger, "cannot read directory; stopping cleanup", "relocation_cleanup_unreadable",
					logging.String("path", dir),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check directory permissions"),
					logging.String(logging.FieldImpact, "empty directories may remain"),
				)
			}
			return
		}
		for _, entry := range entries {
			if entry.IsDir() {
				return
			}
			if _, ok := h.artifacts[entry.Name()]; !ok {
				return
			}
		}

		for _, entry := range entries {
			artifact := filepath.Join(dir, entry.Name())
			if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
				h.logger.Debug("failed to remove artifact", logging.String("path", artifact), logging.Error(err))
			}
		}
		if err := os.Remove(dir); err != nil {
			logging.WarnWithContext(h.logger, "failed to remove empty directory", "relocation_cleanup_failed",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "empty directories may remain"),
			)
			return
		}
		h.logger.Debug("removed empty directory", logging.String("path", dir))
		dir = parent
	}
}

func isRoot(dir string, roots []string) bool {
	for _, root := range roots {
		if dir == root || SameFile(dir, root) {
			return true
		}
	}
	return false
}

func withinAnyRoot(dir string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
