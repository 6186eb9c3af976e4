package relocation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bindery/internal/catalog"
	"bindery/internal/fileutil"
	"bindery/internal/logging"
	"bindery/internal/pathpattern"
	"bindery/internal/services"
	"bindery/internal/staging"
)

// DefaultIgnoredArtifacts never keep an otherwise empty directory alive.
var DefaultIgnoredArtifacts = []string{".DS_Store", "Thumbs.db", "desktop.ini", "._.DS_Store"}

// Helper performs the filesystem steps of a relocation.
type Helper struct {
	logger    *slog.Logger
	artifacts map[string]struct{}
	rename    func(oldpath, newpath string) error
	move      func(src, dst string) error
}

// NewHelper returns a Helper that also ignores extraArtifacts during cleanup.
func NewHelper(logger *slog.Logger, extraArtifacts ...string) *Helper {
	artifacts := make(map[string]struct{}, len(DefaultIgnoredArtifacts)+len(extraArtifacts))
	for _, name := range DefaultIgnoredArtifacts {
		artifacts[name] = struct{}{}
	}
	for _, name := range extraArtifacts {
		if name = strings.TrimSpace(name); name != "" {
			artifacts[name] = struct{}{}
		}
	}
	return &Helper{
		logger:    logging.NewComponentLogger(logger, "relocation"),
		artifacts: artifacts,
		rename:    os.Rename,
		move:      fileutil.MoveFile,
	}
}

// ComputeTargetPath returns where book belongs under libraryRoot according to
// pattern.
func (h *Helper) ComputeTargetPath(book *catalog.Book, libraryRoot, pattern string) string {
	rel := pathpattern.Resolve(pathpattern.FromBook(book), pattern)
	return filepath.Join(libraryRoot, filepath.FromSlash(rel))
}

// Stage renames source to its sibling temp path and returns that path.
func (h *Helper) Stage(source string) (string, error) {
	if _, err := os.Stat(source); err != nil {
		return "", services.Wrap(services.ErrIO, "relocation", "stage", fmt.Sprintf("source %q unavailable", source), err)
	}
	temp := staging.TempPath(source)
	if err := h.rename(source, temp); err != nil {
		return "", services.Wrap(services.ErrIO, "relocation", "stage", fmt.Sprintf("rename %q to temp", source), err)
	}
	h.logger.Debug("file staged", logging.String("source", source), logging.String("temp", temp))
	return temp, nil
}

// Commit renames tempPath to target, creating parents and replacing any
// existing target.
func (h *Helper) Commit(tempPath, target string) error {
	if err := fileutil.EnsureParent(target); err != nil {
		return services.Wrap(services.ErrIO, "relocation", "commit", fmt.Sprintf("prepare %q", target), err)
	}
	if err := h.rename(tempPath, target); err != nil {
		if fileutil.IsCrossDevice(err) {
			return services.Wrap(services.ErrIO, "relocation", "commit",
				"target is on another filesystem; library paths must share a volume with the source", err)
		}
		return services.Wrap(services.ErrIO, "relocation", "commit", fmt.Sprintf("rename temp to %q", target), err)
	}
	h.logger.Debug("file committed", logging.String("temp", tempPath), logging.String("target", target))
	return nil
}

// Rollback moves tempPath back to originalSource. It never fails; problems are
// logged. Nothing happens when tempPath no longer exists.
func (h *Helper) Rollback(tempPath, originalSource string) {
	if _, err := os.Lstat(tempPath); err != nil {
		h.logger.Debug("rollback skipped; temp file absent", logging.String("temp", tempPath))
		return
	}
	if err := fileutil.EnsureParent(originalSource); err != nil {
		h.warnRollback(tempPath, originalSource, err)
		return
	}
	if err := h.rename(tempPath, originalSource); err != nil {
		h.warnRollback(tempPath, originalSource, err)
		return
	}
	h.logger.Info("staged move rolled back",
		logging.String("temp", tempPath),
		logging.String("source", originalSource),
		logging.String(logging.FieldEventType, "relocation_rollback"),
	)
}

func (h *Helper) warnRollback(tempPath, originalSource string, err error) {
	logging.WarnWithContext(h.logger, "rollback failed", "relocation_rollback_failed",
		logging.String("temp", tempPath),
		logging.String("source", originalSource),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run 'bindery reconcile' or restore the file manually"),
		logging.String(logging.FieldImpact, "book file remains at its staged temp path"),
	)
}

// Move relocates source to target directly. Cross-filesystem moves fall back
// to a verified copy and delete.
func (h *Helper) Move(source, target string) error {
	if err := h.move(source, target); err != nil {
		return services.Wrap(services.ErrIO, "relocation", "move", fmt.Sprintf("move %q to %q", source, target), err)
	}
	h.logger.Debug("file moved", logging.String("source", source), logging.String("target", target))
	return nil
}

// ExtractSubPath returns the directory of filePath relative to libraryRoot in
// slash form. A file directly in the root yields "".
func (h *Helper) ExtractSubPath(filePath, libraryRoot string) string {
	root := filepath.Clean(libraryRoot)
	dir := filepath.Dir(filepath.Clean(filePath))
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// SameFile reports whether a and b name the same filesystem object. Paths
// that cannot be inspected are compared lexically.
func SameFile(a, b string) bool {
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(ai, bi)
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
