// Package migrations embeds the schema into the binary.
//
// SQLite files at the root use the YYYYMMDD_HHMMSS_name.{up,down}.sql
// layout; PostgreSQL files under postgres/ are goose-annotated.
package migrations

import (
	"embed"

	"github.com/nerrad567/neogend-core/internal/infrastructure/database"
)

//go:embed *.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

func init() {
	database.MigrationsFS = sqliteFS
	database.MigrationsDir = "."
	database.PostgresMigrationsFS = postgresFS
	database.PostgresMigrationsDir = "postgres"
}
