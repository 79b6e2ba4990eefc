// Package migrations embeds the SQL migrations of the price database.
package migrations

import "embed"

// FS holds every *.up.sql file, applied in lexical order by
// database.RunMigrations.
//
//go:embed *.up.sql
var FS embed.FS
