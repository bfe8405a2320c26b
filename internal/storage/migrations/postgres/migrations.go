// Package postgres embeds the goose migrations for the postgres deployment.
package postgres

import "embed"

//go:embed *.sql
var Migrations embed.FS
