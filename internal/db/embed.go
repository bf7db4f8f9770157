package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode reads migrations from the source tree instead of the binary.
var DevMode = false

// DevMigrationsDir is the migrations directory used when DevMode is set.
var DevMigrationsDir = "internal/db/migrations"

// MigrationsFS returns the migrations filesystem rooted at the .sql files.
func MigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS(DevMigrationsDir), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}
