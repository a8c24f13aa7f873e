package migrations

import "embed"

// FS goose-миграции схемы, встроенные в бинарник
//
//go:embed *.sql
var FS embed.FS
