package mysql

import (
	"tablexform/internal/ddl"
	"tablexform/internal/row"
)

// Dialect renders MySQL DDL. Text columns are LONGTEXT since pivot values
// have no declared width.
var Dialect = ddl.Dialect{
	Name:        "mysql",
	QuoteIdent:  backtick,
	MapKind:     mapKind,
	IfNotExists: true,
}

func mapKind(k row.Kind) string {
	switch k {
	case row.KindInt:
		return "BIGINT"
	case row.KindFloat:
		return "DOUBLE"
	case row.KindDecimal:
		return "DECIMAL(38, 10)"
	case row.KindTime:
		return "DATETIME(6)"
	case row.KindBool:
		return "BOOLEAN"
	}
	return "LONGTEXT"
}
