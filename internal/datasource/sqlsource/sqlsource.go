// Package sqlsource runs one query through database/sql and exposes the
// result set as a typed row stream. Column kinds are derived from the
// driver's column types; values are coerced into those kinds row by row.
//
// Supported drivers are registered on import: "sqlite" (modernc.org/sqlite),
// "pgx" (pgx stdlib), "sqlserver" (go-mssqldb) and "mysql".
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	_ "modernc.org/sqlite"

	"tablexform/internal/row"
)

// Config describes one query against one database.
type Config struct {
	Driver string
	DSN    string
	Query  string
	Params []any
}

// Source is a datasource.RowSource over a query result.
type Source struct {
	db     *sql.DB
	ownsDB bool
	query  string
	params []any

	rows   *sql.Rows
	schema row.Schema
	kinds  []row.Kind
	scan   []any
	ptrs   []any
}

// openDB is a test seam.
var openDB = sql.Open

// Open validates the DSN for the driver, opens a pool and pings it. The
// returned Source owns the pool and closes it on Close.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	dsn, err := prepareDSN(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql: open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql: ping %s: %w", cfg.Driver, err)
	}
	s := New(db, cfg.Query, cfg.Params...)
	s.ownsDB = true
	return s, nil
}

// New returns a Source running query on an existing pool. The pool is not
// closed by Close.
func New(db *sql.DB, query string, params ...any) *Source {
	return &Source{db: db, query: query, params: params}
}

// prepareDSN checks the DSN with the driver's own parser and applies the
// options the row model relies on.
func prepareDSN(driver, dsn string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("sql: empty dsn for driver %q", driver)
	}
	switch driver {
	case "sqlite":
		return dsn, nil
	case "pgx":
		if _, err := pgx.ParseConfig(dsn); err != nil {
			return "", fmt.Errorf("sql: pgx dsn: %w", err)
		}
		return dsn, nil
	case "sqlserver":
		if _, err := msdsn.Parse(dsn); err != nil {
			return "", fmt.Errorf("sql: mssql dsn: %w", err)
		}
		return dsn, nil
	case "mysql":
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("sql: mysql dsn: %w", err)
		}
		// DATETIME columns must scan as time.Time.
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	}
	return "", fmt.Errorf("sql: unsupported driver %q", driver)
}

// Schema executes the query and derives the schema from its column types.
func (s *Source) Schema(ctx context.Context) (row.Schema, error) {
	if s.rows != nil {
		return s.schema, nil
	}
	rows, err := s.db.QueryContext(ctx, s.query, s.params...)
	if err != nil {
		return row.Schema{}, fmt.Errorf("sql: query: %w", err)
	}
	cts, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return row.Schema{}, fmt.Errorf("sql: column types: %w", err)
	}

	cols := make([]row.Column, len(cts))
	s.kinds = make([]row.Kind, len(cts))
	for i, ct := range cts {
		k := KindOf(ct.DatabaseTypeName(), ct.ScanType())
		cols[i] = row.Column{Name: ct.Name(), Kind: k}
		s.kinds[i] = k
	}
	schema, err := row.NewSchema(cols...)
	if err != nil {
		_ = rows.Close()
		return row.Schema{}, fmt.Errorf("sql: result columns: %w", err)
	}

	s.rows = rows
	s.schema = schema
	s.scan = make([]any, len(cols))
	s.ptrs = make([]any, len(cols))
	for i := range s.scan {
		s.ptrs[i] = &s.scan[i]
	}
	return schema, nil
}

// Next scans the next result row. It returns io.EOF after the last row.
func (s *Source) Next(ctx context.Context) (row.Row, error) {
	if s.rows == nil {
		return nil, errors.New("sql: Next before Schema")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("sql: next: %w", err)
		}
		return nil, io.EOF
	}
	if err := s.rows.Scan(s.ptrs...); err != nil {
		return nil, fmt.Errorf("sql: scan: %w", err)
	}
	out := make(row.Row, len(s.scan))
	for i, x := range s.scan {
		v, err := row.Coerce(s.kinds[i], x)
		if err != nil {
			return nil, fmt.Errorf("sql: column [%s]: %w", s.schema.Column(i).Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// Close releases the result set and, for sources created by Open, the pool.
func (s *Source) Close() error {
	var errs []error
	if s.rows != nil {
		errs = append(errs, s.rows.Close())
	}
	if s.ownsDB && s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	nullInt   = reflect.TypeOf(sql.NullInt64{})
	nullFloat = reflect.TypeOf(sql.NullFloat64{})
	nullBool  = reflect.TypeOf(sql.NullBool{})
	nullTime  = reflect.TypeOf(sql.NullTime{})
)

// KindOf maps a driver's database type name to a row kind. When the name is
// unknown (sqlite expressions report none) the scan type decides; anything
// still unresolved is text.
func KindOf(dbType string, scan reflect.Type) row.Kind {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	switch t {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return row.KindInt
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return row.KindDecimal
	case "FLOAT", "REAL", "DOUBLE", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		return row.KindFloat
	case "BOOL", "BOOLEAN", "BIT":
		return row.KindBool
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET",
		"TIMESTAMP", "TIMESTAMPTZ":
		return row.KindTime
	case "":
	default:
		return row.KindText
	}

	if scan == nil {
		return row.KindText
	}
	switch scan {
	case timeType, nullTime:
		return row.KindTime
	case nullInt:
		return row.KindInt
	case nullFloat:
		return row.KindFloat
	case nullBool:
		return row.KindBool
	}
	switch scan.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return row.KindInt
	case reflect.Float32, reflect.Float64:
		return row.KindFloat
	case reflect.Bool:
		return row.KindBool
	}
	return row.KindText
}
