package mssql

import (
	"fmt"
	"strings"

	"tablexform/internal/ddl"
	"tablexform/internal/row"
)

// Dialect renders T-SQL DDL. SQL Server has no CREATE TABLE IF NOT EXISTS, so
// the statement is wrapped in an OBJECT_ID guard.
var Dialect = ddl.Dialect{
	Name:       "mssql",
	QuoteIdent: msIdent,
	MapKind:    mapKind,
	Guard: func(quotedFQN, create string) string {
		lit := strings.ReplaceAll(quotedFQN, "'", "''")
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND", lit, create)
	},
}

func mapKind(k row.Kind) string {
	switch k {
	case row.KindInt:
		return "BIGINT"
	case row.KindFloat:
		return "FLOAT"
	case row.KindDecimal:
		return "DECIMAL(38, 10)"
	case row.KindTime:
		return "DATETIME2"
	case row.KindBool:
		return "BIT"
	}
	return "NVARCHAR(MAX)"
}
