package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

const fileSourceScheme = "file://"

// migrationSource turns a directory into a golang-migrate source URL
func migrationSource(migrationsPath string) string {
	if strings.HasPrefix(migrationsPath, fileSourceScheme) {
		return migrationsPath
	}
	return fileSourceScheme + migrationsPath
}

// RunMigrations brings the schema for the blood bank tables up to the latest version.
// migrationsPath may be a plain directory (./migrations) or a file:// URL.
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) error {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(migrationSource(migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrate instance", "source_error", sourceErr, "database_error", dbErr)
		}
	}()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}

	logger.Info("PostgreSQL schema up to date", "version", version, "changed", upErr == nil)
	return nil
}
