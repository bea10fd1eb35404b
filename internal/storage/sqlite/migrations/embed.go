// Package migrations embeds the chat schema DDL.
package migrations

import "embed"

// FS contains the .sql migration files applied at startup.
//
//go:embed *.sql
var FS embed.FS
