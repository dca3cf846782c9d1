// Package migrations embeds SQL migration files into the binary.
//
// Each dialect has its own directory (sqlite/, postgres/) with matching
// versions, so `sensegrid migrate status` reports the same history on both.
package migrations

import (
	"embed"

	"github.com/tronix365/sensegrid/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
