package migrations

import "embed"

// FS embeds the SQL migrations of the problem bank database.
//
//go:embed *.sql
var FS embed.FS
