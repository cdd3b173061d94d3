// Package migrations embeds the SQL migration files applied at process
// startup by cmd/api.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
