// Package migrations carries the SQL schema for the snapshot store.
//
// Importing it for side effects points database.Migrate at the embedded
// files, so the binary never needs the .sql files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/btscanner/internal/infrastructure/database"
)

//go:embed *.sql
var schema embed.FS

func init() {
	database.MigrationsFS, database.MigrationsDir = schema, "."
}
