package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const pgDriverName = "postgres"

// Migrate brings the history schema in folderPath up to date. An up-to-date
// schema is not an error.
func Migrate(dsn, folderPath string) error {
	db, err := sql.Open(pgDriverName, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+folderPath, pgDriverName, driver)
	if err != nil {
		return fmt.Errorf("load migrations from %s: %w", folderPath, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	zap.L().Info("database schema ready", zap.Uint("version", version))
	return nil
}
