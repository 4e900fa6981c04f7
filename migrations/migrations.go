// Package migrations embeds the Postgres schema files applied at startup.
package migrations

import "embed"

// Files holds the ordered *.sql migrations.
//
//go:embed *.sql
var Files embed.FS
