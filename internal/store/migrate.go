package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies database migrations from the given source directory.
// dir example: file://migrations
func Migrate(dir, dsn, direction string, steps int) error {
	if dir == "" {
		dir = "file://migrations"
	}
	if dsn == "" {
		return fmt.Errorf("postgres dsn required")
	}
	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
