package catalog

import (
	"path/filepath"
	"strings"
	"time"
)

// Library is a named collection of one or more root directories.
type Library struct {
	ID   int64
	Name string
	// FileNamingPattern overrides the process-wide default when non-empty.
	FileNamingPattern string
	Paths             []LibraryPath
}

// PathByID returns the library path with the given identifier.
func (l *Library) PathByID(id int64) (LibraryPath, bool) {
	if l == nil {
		return LibraryPath{}, false
	}
	for _, p := range l.Paths {
		if p.ID == id {
			return p, true
		}
	}
	return LibraryPath{}, false
}

// Roots returns every root directory of the library.
func (l *Library) Roots() []string {
	if l == nil {
		return nil
	}
	roots := make([]string, 0, len(l.Paths))
	for _, p := range l.Paths {
		roots = append(roots, p.Path)
	}
	return roots
}

// LibraryPath is one absolute root directory belonging to a library.
type LibraryPath struct {
	ID        int64
	LibraryID int64
	Path      string
}

// Book is the persisted record of a single book file.
type Book struct {
	ID            int64
	LibraryID     int64
	LibraryPathID int64
	// LibraryRoot is the absolute path of LibraryPathID, joined in on read.
	LibraryRoot string
	// SubPath is the slash-separated directory relative to LibraryRoot.
	SubPath  string
	FileName string

	Title         string
	Subtitle      string
	Authors       []string
	SeriesName    string
	SeriesNumber  *float64
	PublishedDate string
	Publisher     string
	Language      string
	ISBN          string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullPath returns the absolute host path of the book file.
func (b *Book) FullPath() string {
	if b == nil {
		return ""
	}
	sub := strings.Trim(b.SubPath, "/")
	if sub == "" {
		return filepath.Join(b.LibraryRoot, b.FileName)
	}
	return filepath.Join(b.LibraryRoot, filepath.FromSlash(sub), b.FileName)
}

// NewBook describes a book to insert.
type NewBook struct {
	LibraryID     int64
	LibraryPathID int64
	SubPath       string
	FileName      string
	Title         string
	Subtitle      string
	Authors       []string
	SeriesName    string
	SeriesNumber  *float64
	PublishedDate string
	Publisher     string
	Language      string
	ISBN          string
}

// PendingMove is a journal row written before a file is staged and removed
// once the move is committed or rolled back.
type PendingMove struct {
	BookID     int64
	SourcePath string
	TempPath   string
	TargetPath string
	CreatedAt  time.Time
}

// SettingDefaultPattern is the app setting holding the default naming pattern.
const SettingDefaultPattern = "default_pattern"
