// Package migrations embeds the Postgres SQL migration files.
package migrations

import "embed"

// FS contains the email verification migrations.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "."
