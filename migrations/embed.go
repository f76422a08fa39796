// Package migrations embeds the goose SQL migrations for the trip plan store.
package migrations

import "embed"

// FS holds every *.sql migration, applied through goose.NewProvider.
//
//go:embed *.sql
var FS embed.FS
