// Package migrations embeds the goose SQL migrations for each supported database.
package migrations

import "embed"

// SQLite holds the migrations applied by the SQLite store, under sqlite/.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the migrations applied by the Postgres store, under postgres/.
//
//go:embed postgres/*.sql
var Postgres embed.FS
