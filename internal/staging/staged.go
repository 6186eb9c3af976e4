package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bindery/internal/logging"
)

// TempSuffix marks a file that has been staged for relocation.
const TempSuffix = ".tmp_move"

// TempPath returns the staging location for source.
func TempPath(source string) string {
	return source + TempSuffix
}

// OriginalPath strips the staging suffix. ok is false when path is not staged.
func OriginalPath(path string) (string, bool) {
	if !IsStaged(path) {
		return path, false
	}
	return strings.TrimSuffix(path, TempSuffix), true
}

// IsStaged reports whether path names a staged temp file.
func IsStaged(path string) bool {
	return strings.HasSuffix(path, TempSuffix) && len(filepath.Base(path)) > len(TempSuffix)
}

// StagedFile describes one staged temp file found on disk.
type StagedFile struct {
	Path     string
	Original string
	Root     string
	ModTime  time.Time
	Size     int64
}

// FindResult contains the staged files found and any walk errors.
type FindResult struct {
	Files  []StagedFile
	Errors []WalkError
}

// WalkError pairs a path with the error encountered while reading it.
type WalkError struct {
	Path  string
	Error error
}

// FindStaged walks every root and returns staged temp files ordered by path.
// Unreadable directories are recorded and skipped.
func FindStaged(ctx context.Context, roots []string, logger *slog.Logger) FindResult {
	result := FindResult{}
	seen := make(map[string]struct{})

	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if os.IsNotExist(err) && path == root {
					return filepath.SkipDir
				}
				result.Errors = append(result.Errors, WalkError{Path: path, Error: err})
				if logger != nil {
					logger.Warn("failed to scan library directory for staged files",
						logging.String("path", path),
						logging.Error(err),
						logging.String(logging.FieldEventType, "staging_scan_failed"),
						logging.String(logging.FieldErrorHint, "check library directory permissions"),
						logging.String(logging.FieldImpact, "staged files under this path are not reconciled"),
					)
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsStaged(path) {
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				result.Errors = append(result.Errors, WalkError{Path: path, Error: err})
				return nil
			}
			seen[path] = struct{}{}
			original, _ := OriginalPath(path)
			result.Files = append(result.Files, StagedFile{
				Path:     path,
				Original: original,
				Root:     root,
				ModTime:  info.ModTime(),
				Size:     info.Size(),
			})
			return nil
		})
		if err != nil && ctx.Err() != nil {
			break
		}
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})
	return result
}
