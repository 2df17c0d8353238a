// Package migrations holds the SQL schema of the billing store.
// Files follow golang-migrate naming: {version}_{name}.{up|down}.sql
package migrations

import "embed"

// FS embeds every migration file.
//
//go:embed *.sql
var FS embed.FS
