// Package schema embeds the goose migrations for the canopy tables.
//
// The statements create unprefixed tables. Deployments that set
// database.prefix manage their own schema.
package schema

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the migration files rooted at their directory, ready
// for db.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
