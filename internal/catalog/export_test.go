package catalog

import (
	"context"
	"fmt"
)

// ForceSchemaVersionForTest rewrites the recorded schema version.
func ForceSchemaVersionForTest(s *Store, version int) error {
	_, err := s.db.ExecContext(context.Background(), fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}

// SchemaVersionForTest reads the recorded schema version.
func SchemaVersionForTest(s *Store) (int, error) {
	var version int
	err := s.db.QueryRowContext(context.Background(), "PRAGMA user_version").Scan(&version)
	return version, err
}

// LatestSchemaVersionForTest returns the number of embedded migrations.
func LatestSchemaVersionForTest() (int, error) {
	migrations, err := loadMigrations()
	return len(migrations), err
}
