// Package migrations embeds the amplifier bridge schema into the binary.
//
// ampd runs these on startup so the operation log table exists without the
// SQL files being shipped alongside the executable.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
