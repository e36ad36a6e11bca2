// Package ddl renders CREATE TABLE statements for the database sinks. A
// TableDef is derived from the output row.Schema of a pipeline; each backend
// supplies a Dialect with its quoting and type mapping.
package ddl

import (
	"fmt"
	"strings"

	"tablexform/internal/row"
)

// FromSchema builds a TableDef for fqn with one nullable column per schema
// column, typed by d.MapKind. Every column is nullable since any value may be
// null.
func FromSchema(fqn string, s row.Schema, d Dialect) TableDef {
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, s.Len())}
	for i, c := range s.Columns() {
		t.Columns[i] = ColumnDef{Name: c.Name, SQLType: d.MapKind(c.Kind), Nullable: true}
	}
	return t
}

// BuildCreateTableSQL renders t in dialect d:
//
//	CREATE TABLE [IF NOT EXISTS] <fqn> (
//	  <col> <type> [NOT NULL],
//	  ...
//	);
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s missing SQLType", d.Name, name)
		}
		def := d.QuoteIdent(name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}

	qfqn := QuoteFQN(fqn, d.QuoteIdent)
	head := "CREATE TABLE "
	if d.IfNotExists {
		head += "IF NOT EXISTS "
	}
	stmt := fmt.Sprintf("%s%s (\n  %s\n);", head, qfqn, strings.Join(cols, ",\n  "))
	if d.Guard != nil {
		stmt = d.Guard(qfqn, stmt)
	}
	return stmt, nil
}

// QuoteFQN quotes each dot-separated segment of name. Empty segments are
// dropped.
func QuoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}

// DoubleQuote quotes an identifier ANSI-style: "name", doubling embedded
// quotes.
func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
