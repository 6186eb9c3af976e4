// Package pathpattern turns a naming pattern and a book's metadata into a
// relative, slash-separated file path.
//
// Patterns mix literal text with placeholders such as {authors} or {title}.
// Text wrapped in <...> is optional and disappears when any placeholder
// inside it resolves empty. Resolution never fails: unknown placeholders
// resolve empty, empty segments collapse, and the result is always relative.
package pathpattern
