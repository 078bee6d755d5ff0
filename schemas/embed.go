// Package schemas provides embedded SQL migration files.
package schemas

import "embed"

// Migrations contains the SQL migration files of every dialect, under migrations/<dialect>/.
//
//go:embed migrations/*/*.sql
var Migrations embed.FS
