package pathpattern

import (
	"sync"
	"testing"

	"bindery/internal/catalog"
)

func float(v float64) *float64 { return &v }

func orwell() BookAttributes {
	return BookAttributes{
		Title:         "1984",
		Authors:       []string{"George Orwell"},
		PublishedDate: "1949-06-08",
		Publisher:     "Secker & Warburg",
		Language:      "en",
		FileName:      "nineteen.epub",
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name    string
		attrs   BookAttributes
		pattern string
		want    string
	}{
		{"authors and title", orwell(), "{authors}/{title}", "George Orwell/1984.epub"},
		{"author alias", orwell(), "{author}/{title}.{extension}", "George Orwell/1984.epub"},
		{"current filename", orwell(), "{currentFilename}", "nineteen.epub"},
		{"trailing separator", orwell(), "{authors}/", "George Orwell/nineteen.epub"},
		{"leading separator stripped", orwell(), "/{authors}/{title}", "George Orwell/1984.epub"},
		{"empty segment collapses", BookAttributes{Title: "Solo", FileName: "s.pdf"}, "{author}/{title}", "Solo.pdf"},
		{"year from date", orwell(), "{year}/{title}", "1949/1984.epub"},
		{"optional block dropped", orwell(), "{authors}/<{series}/>{title}", "George Orwell/1984.epub"},
		{
			"optional block kept",
			BookAttributes{Title: "Dune Messiah", Authors: []string{"Frank Herbert"}, SeriesName: "Dune", SeriesNumber: float(2), FileName: "dm.epub"},
			"{authors}/<{series}/><{seriesIndex} - >{title}",
			"Frank Herbert/Dune/2 - Dune Messiah.epub",
		},
		{
			"fractional series index",
			BookAttributes{Title: "Novella", SeriesName: "Saga", SeriesNumber: float(3.5), FileName: "n.epub"},
			"{series}/{seriesIndex}",
			"Saga/3.5.epub",
		},
		{
			"multiple authors",
			BookAttributes{Title: "Good Omens", Authors: []string{"Terry Pratchett", " Neil Gaiman "}, FileName: "go.epub"},
			"{authors}/{title}",
			"Terry Pratchett, Neil Gaiman/Good Omens.epub",
		},
		{
			"unsafe characters sanitized",
			BookAttributes{Title: "Batman: Year/One?", Authors: []string{"Frank  Miller"}, FileName: "b.cbz"},
			"{authors}/{title}",
			"Frank Miller/Batman - Year-One.cbz",
		},
		{"unknown placeholder empty", orwell(), "{nope}/{title}", "1984.epub"},
		{"placeholder names fold case", orwell(), "{Authors}/{TITLE}", "George Orwell/1984.epub"},
		{"extension already present", BookAttributes{Title: "Notes.pdf", FileName: "x.pdf"}, "{title}", "Notes.pdf"},
		{"dot segments dropped", orwell(), "../{title}", "1984.epub"},
		{"empty pattern falls back", orwell(), "", "nineteen.epub"},
		{"all empty falls back to filename", BookAttributes{FileName: "keep.mobi"}, "{authors}/{title}", "keep.mobi"},
		{"literal text kept", orwell(), "Books/{authors} - {title}", "Books/George Orwell - 1984.epub"},
		{"unterminated brace literal", orwell(), "{title", "{title.epub"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.attrs, tc.pattern); got != tc.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tc.pattern, got, tc.want)
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	attrs := orwell()
	first := Resolve(attrs, "{authors}/<{series}/>{title}")
	for i := 0; i < 5; i++ {
		if got := Resolve(attrs, "{authors}/<{series}/>{title}"); got != first {
			t.Fatalf("expected stable output %q, got %q", first, got)
		}
	}
}

func TestResolveConcurrentCallers(t *testing.T) {
	attrs := orwell()
	patterns := []string{"{AUTHORS}/{Title}", "{authors}/<{SERIES}/>{title}", "{Year} - {TITLE}.{Extension}"}
	want := make([]string, len(patterns))
	for i, pattern := range patterns {
		want[i] = Resolve(attrs, pattern)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				i := n % len(patterns)
				if got := Resolve(attrs, patterns[i]); got != want[i] {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("concurrent Resolve returned %q", got)
	}
}

func TestEffectivePattern(t *testing.T) {
	cases := []struct {
		library, fallback, want string
	}{
		{"{title}", "{authors}/{title}", "{title}"},
		{"  ", "{authors}/{title}", "{authors}/{title}"},
		{"", "", FallbackPattern},
		{"{authors}/", "", "{authors}/{currentFilename}"},
		{"", "{series}\\", "{series}\\{currentFilename}"},
	}
	for _, tc := range cases {
		if got := EffectivePattern(tc.library, tc.fallback); got != tc.want {
			t.Fatalf("EffectivePattern(%q, %q) = %q, want %q", tc.library, tc.fallback, got, tc.want)
		}
	}
}

func TestSanitizeSegmentNormalizesUnicode(t *testing.T) {
	decomposed := "Cafe\u0301 Noir."
	if got := SanitizeSegment(decomposed); got != "Caf\u00e9 Noir" {
		t.Fatalf("expected NFC form without trailing dot, got %q", got)
	}
	if got := SanitizeSegment("a\tb\x00c"); got != "a bc" {
		t.Fatalf("expected control characters handled, got %q", got)
	}
}

func TestFromBook(t *testing.T) {
	book := &catalog.Book{Title: "T", Authors: []string{"A"}, FileName: "f.epub", SeriesNumber: float(1)}
	attrs := FromBook(book)
	if attrs.Title != "T" || attrs.FileName != "f.epub" || attrs.SeriesNumber == nil {
		t.Fatalf("unexpected attrs %#v", attrs)
	}
	if got := FromBook(nil); got.Title != "" {
		t.Fatalf("expected zero attrs for nil book, got %#v", got)
	}
}
