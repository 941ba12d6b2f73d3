package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations applies the embedded schema for clubs, usage and payouts.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	source, err := newSource()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}

func newSource() (*iofs.PartialDriver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return source, nil
}
