// Package migrations embeds the SQL schema for the embeddings table.
package migrations

import "embed"

// FS contains all *.sql goose migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
