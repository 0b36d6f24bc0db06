package database

import "embed"

// Migrations holds the goose SQL migrations for the table store schema
//
//go:embed migrations/*.sql
var Migrations embed.FS
