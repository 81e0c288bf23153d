package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrNoMigrations is returned by Migrate when given a nil filesystem.
	ErrNoMigrations = errors.New("database: no migration filesystem")
)
