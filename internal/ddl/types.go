package ddl

import "tablexform/internal/row"

// ColumnDef describes one column of a table definition. Name is unquoted;
// quoting happens at render time.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the dotted table name (e.g. "schema.table") and its
// ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect captures what differs between backends when rendering DDL.
type Dialect struct {
	Name string

	// QuoteIdent quotes one identifier segment.
	QuoteIdent func(string) string

	// MapKind returns the column type for a row kind.
	MapKind func(row.Kind) string

	// IfNotExists renders CREATE TABLE IF NOT EXISTS.
	IfNotExists bool

	// Guard, when set, wraps the plain CREATE TABLE statement, for dialects
	// without IF NOT EXISTS.
	Guard func(quotedFQN, create string) string
}
