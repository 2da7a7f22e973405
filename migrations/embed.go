// Package migrations embeds SQL migration files into the binary.
//
// The SQL in this directory runs unchanged on SQLite and PostgreSQL.
package migrations

import (
	"embed"

	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
