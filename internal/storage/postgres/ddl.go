package postgres

import (
	"tablexform/internal/ddl"
	"tablexform/internal/row"
)

// Dialect renders Postgres DDL.
var Dialect = ddl.Dialect{
	Name:        "postgres",
	QuoteIdent:  ddl.DoubleQuote,
	MapKind:     mapKind,
	IfNotExists: true,
}

func mapKind(k row.Kind) string {
	switch k {
	case row.KindInt:
		return "BIGINT"
	case row.KindFloat:
		return "DOUBLE PRECISION"
	case row.KindDecimal:
		return "NUMERIC"
	case row.KindTime:
		return "TIMESTAMPTZ"
	case row.KindBool:
		return "BOOLEAN"
	}
	return "TEXT"
}
