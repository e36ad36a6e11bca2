package sqlite

import (
	"tablexform/internal/ddl"
	"tablexform/internal/row"
)

// Dialect renders SQLite DDL. Times are stored as ISO-8601 TEXT and booleans
// as INTEGER 0/1.
var Dialect = ddl.Dialect{
	Name:        "sqlite",
	QuoteIdent:  ddl.DoubleQuote,
	MapKind:     mapKind,
	IfNotExists: true,
}

func mapKind(k row.Kind) string {
	switch k {
	case row.KindInt, row.KindBool:
		return "INTEGER"
	case row.KindFloat:
		return "REAL"
	case row.KindDecimal:
		return "NUMERIC"
	}
	return "TEXT"
}
