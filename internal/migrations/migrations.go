// Package migrations содержит SQL-миграции, встроенные в бинарник и применяемые через goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
