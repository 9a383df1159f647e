// Package migrations embeds the docsync schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/sqlite/*.sql files/postgres/*.sql
var migrationFiles embed.FS

// Supported dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var (
	ErrUnknownDialect = errors.New("migrations: unknown dialect")
	ErrNoVersion      = errors.New("migrations: database has no schema version")
	ErrDirty          = errors.New("migrations: database is in a dirty state")
	ErrBehind         = errors.New("migrations: database schema is behind")
	ErrAhead          = errors.New("migrations: database schema is ahead of this binary")
)

// Report describes the schema version of a database relative to the embedded files.
type Report struct {
	Version uint
	Latest  uint
	Dirty   bool
}

// Pending returns the number of migrations not yet applied.
func (r Report) Pending() uint {
	if r.Version >= r.Latest {
		return 0
	}
	return r.Latest - r.Version
}

// Files exposes the embedded migrations for a dialect.
func Files(dialect string) (fs.FS, error) {
	dir, err := dialectDir(dialect)
	if err != nil {
		return nil, err
	}
	return fs.Sub(migrationFiles, dir)
}

// MigrateUp applies every pending migration. A database already at the
// latest version is not an error.
func MigrateUp(db *sql.DB, dialect string) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return err
	}
	// m is not closed: closing it would close db, which the caller owns.
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Status reports the applied and latest schema versions.
func Status(db *sql.DB, dialect string) (Report, error) {
	latest, err := LatestVersion(dialect)
	if err != nil {
		return Report{}, err
	}
	report := Report{Latest: latest}

	m, err := newMigrate(db, dialect)
	if err != nil {
		return report, err
	}
	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return report, nil
		}
		return report, fmt.Errorf("migrations: read version: %w", err)
	}
	report.Version = version
	report.Dirty = dirty
	return report, nil
}

// Check returns nil when the database is exactly at the latest version.
func Check(db *sql.DB, dialect string) error {
	report, err := Status(db, dialect)
	if err != nil {
		return err
	}
	switch {
	case report.Dirty:
		return fmt.Errorf("%w at version %d", ErrDirty, report.Version)
	case report.Version == 0:
		return ErrNoVersion
	case report.Version < report.Latest:
		return fmt.Errorf("%w: at %d, latest %d", ErrBehind, report.Version, report.Latest)
	case report.Version > report.Latest:
		return fmt.Errorf("%w: at %d, latest %d", ErrAhead, report.Version, report.Latest)
	}
	return nil
}

// LatestVersion returns the highest embedded migration version for dialect.
func LatestVersion(dialect string) (uint, error) {
	src, err := newSource(dialect)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return latestVersion(src)
}

func newMigrate(db *sql.DB, dialect string) (*migrate.Migrate, error) {
	if db == nil {
		return nil, errors.New("migrations: database handle is required")
	}
	src, err := newSource(dialect)
	if err != nil {
		return nil, err
	}

	var (
		driver     database.Driver
		driverName string
	)
	switch normalize(dialect) {
	case DialectSQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		driverName = "sqlite3"
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
		driverName = "postgres"
	}
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("migrations: database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("migrations: create instance: %w", err)
	}
	return m, nil
}

func newSource(dialect string) (source.Driver, error) {
	dir, err := dialectDir(dialect)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: read files: %w", err)
	}
	return src, nil
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("migrations: first version: %w", err)
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			// Next reports the end of the list as an error.
			return version, nil
		}
		version = next
	}
}

func dialectDir(dialect string) (string, error) {
	switch normalize(dialect) {
	case DialectSQLite:
		return "files/sqlite", nil
	case DialectPostgres:
		return "files/postgres", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
}

func normalize(dialect string) string {
	value := strings.ToLower(strings.TrimSpace(dialect))
	switch value {
	case "sqlite3":
		return DialectSQLite
	case "pg", "postgresql":
		return DialectPostgres
	}
	return value
}
