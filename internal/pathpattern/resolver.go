package pathpattern

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"bindery/internal/catalog"
)

// FallbackPattern keeps a file's current name. It applies when neither the
// library nor the application configures a pattern.
const FallbackPattern = "{currentFilename}"

const (
	placeholderCurrentFilename = "currentfilename"
	placeholderExtension       = "extension"
)

var yearPattern = regexp.MustCompile(`\d{4}`)


// BookAttributes carries the metadata a pattern can reference.
type BookAttributes struct {
	Title         string
	Subtitle      string
	Authors       []string
	SeriesName    string
	SeriesNumber  *float64
	PublishedDate string
	Publisher     string
	Language      string
	ISBN          string
	// FileName is the book's current file name including its extension.
	FileName string
}

// FromBook extracts pattern attributes from a catalog record.
func FromBook(book *catalog.Book) BookAttributes {
	if book == nil {
		return BookAttributes{}
	}
	return BookAttributes{
		Title:         book.Title,
		Subtitle:      book.Subtitle,
		Authors:       book.Authors,
		SeriesName:    book.SeriesName,
		SeriesNumber:  book.SeriesNumber,
		PublishedDate: book.PublishedDate,
		Publisher:     book.Publisher,
		Language:      book.Language,
		ISBN:          book.ISBN,
		FileName:      book.FileName,
	}
}

// value looks up a placeholder by its case-folded name.
func (a BookAttributes) value(key string) string {
	switch key {
	case placeholderCurrentFilename:
		return a.FileName
	case "title":
		return a.Title
	case "subtitle":
		return a.Subtitle
	case "authors", "author":
		authors := make([]string, 0, len(a.Authors))
		for _, author := range a.Authors {
			if author = strings.TrimSpace(author); author != "" {
				authors = append(authors, author)
			}
		}
		return strings.Join(authors, ", ")
	case "series":
		return a.SeriesName
	case "seriesindex":
		if a.SeriesNumber == nil {
			return ""
		}
		return strconv.FormatFloat(*a.SeriesNumber, 'f', -1, 64)
	case "year":
		return yearPattern.FindString(a.PublishedDate)
	case "publisher":
		return a.Publisher
	case "language":
		return a.Language
	case "isbn":
		return a.ISBN
	case placeholderExtension:
		return strings.TrimPrefix(filepath.Ext(a.FileName), ".")
	default:
		return ""
	}
}

// Resolve substitutes attrs into pattern and returns a relative path using
// "/" separators.
func Resolve(attrs BookAttributes, pattern string) string {
	pattern = strings.ReplaceAll(strings.TrimSpace(pattern), "\\", "/")
	if pattern == "" {
		pattern = FallbackPattern
	}
	if strings.HasSuffix(pattern, "/") {
		pattern += FallbackPattern
	}

	// A Caser keeps state between calls, so each resolution folds with its own.
	exp := expander{attrs: attrs, fold: cases.Fold()}
	raw := exp.expand(pattern)

	segments := make([]string, 0, 4)
	for _, segment := range strings.Split(raw, "/") {
		segment = strings.TrimSpace(segment)
		if segment == "" || segment == "." || segment == ".." {
			continue
		}
		segments = append(segments, segment)
	}
	if len(segments) == 0 {
		if name := SanitizeSegment(attrs.FileName); name != "" {
			return name
		}
		return ""
	}

	ext := filepath.Ext(attrs.FileName)
	last := segments[len(segments)-1]
	if !exp.usedName && ext != "" && !strings.HasSuffix(strings.ToLower(last), strings.ToLower(ext)) {
		segments[len(segments)-1] = last + ext
	}
	return strings.Join(segments, "/")
}

// EffectivePattern chooses the library pattern, then the default, then the
// fallback. A trailing separator is completed with the current file name.
func EffectivePattern(libraryPattern, defaultPattern string) string {
	pattern := strings.TrimSpace(libraryPattern)
	if pattern == "" {
		pattern = strings.TrimSpace(defaultPattern)
	}
	if pattern == "" {
		return FallbackPattern
	}
	if strings.HasSuffix(pattern, "/") || strings.HasSuffix(pattern, "\\") {
		pattern += FallbackPattern
	}
	return pattern
}

type expander struct {
	attrs BookAttributes
	fold  cases.Caser
	// usedName records whether {extension} or {currentFilename} reached the output.
	usedName bool
}

// expand processes optional blocks and placeholders left to right. An
// unmatched '<' or '{' is kept as literal text.
func (e *expander) expand(pattern string) string {
	var out strings.Builder
	for i := 0; i < len(pattern); {
		switch pattern[i] {
		case '<':
			end := strings.IndexByte(pattern[i+1:], '>')
			if end < 0 {
				out.WriteByte('<')
				i++
				continue
			}
			block := pattern[i+1 : i+1+end]
			text, complete, usedName := e.substitute(block)
			if complete {
				out.WriteString(text)
				e.usedName = e.usedName || usedName
			}
			i += end + 2
		default:
			next := strings.IndexByte(pattern[i:], '<')
			if next < 0 {
				next = len(pattern) - i
			}
			text, _, usedName := e.substitute(pattern[i : i+next])
			out.WriteString(text)
			e.usedName = e.usedName || usedName
			i += next
		}
	}
	return out.String()
}

// substitute replaces placeholders in text. complete is false when any
// placeholder resolved empty.
func (e *expander) substitute(text string) (string, bool, bool) {
	var out strings.Builder
	complete := true
	usedName := false
	for {
		start := strings.IndexByte(text, '{')
		if start < 0 {
			out.WriteString(text)
			break
		}
		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			out.WriteString(text)
			break
		}
		out.WriteString(text[:start])
		key := e.fold.String(strings.TrimSpace(text[start+1 : start+end]))
		value := SanitizeSegment(e.attrs.value(key))
		if value == "" {
			complete = false
		} else {
			switch key {
			case placeholderCurrentFilename, placeholderExtension:
				usedName = true
			}
		}
		out.WriteString(value)
		text = text[start+end+1:]
	}
	return out.String(), complete, usedName
}
