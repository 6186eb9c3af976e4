package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const bookColumns = `b.id, b.library_id, b.library_path_id, lp.path, b.sub_path, b.file_name,
    b.title, b.subtitle, b.authors_json, b.series_name, b.series_number,
    b.published_date, b.publisher, b.language, b.isbn, b.created_at, b.updated_at`

const bookFrom = ` FROM books b JOIN library_paths lp ON lp.id = b.library_path_id`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*Book, error) {
	var (
		book          Book
		title         sql.NullString
		subtitle      sql.NullString
		authorsJSON   sql.NullString
		seriesName    sql.NullString
		seriesNumber  sql.NullFloat64
		publishedDate sql.NullString
		publisher     sql.NullString
		language      sql.NullString
		isbn          sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&book.ID,
		&book.LibraryID,
		&book.LibraryPathID,
		&book.LibraryRoot,
		&book.SubPath,
		&book.FileName,
		&title,
		&subtitle,
		&authorsJSON,
		&seriesName,
		&seriesNumber,
		&publishedDate,
		&publisher,
		&language,
		&isbn,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	book.Title = title.String
	book.Subtitle = subtitle.String
	book.SeriesName = seriesName.String
	book.PublishedDate = publishedDate.String
	book.Publisher = publisher.String
	book.Language = language.String
	book.ISBN = isbn.String
	if seriesNumber.Valid {
		n := seriesNumber.Float64
		book.SeriesNumber = &n
	}
	if authorsJSON.Valid && authorsJSON.String != "" {
		if err := json.Unmarshal([]byte(authorsJSON.String), &book.Authors); err != nil {
			return nil, err
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		book.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		book.UpdatedAt = updated
	}
	return &book, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func encodeAuthors(authors []string) (any, error) {
	if len(authors) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(authors)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
