// Package datasource defines the collaborators that feed a pipeline: byte
// sources (files) and typed row sources. Query execution, connections and
// authentication live behind these interfaces.
package datasource

import (
	"context"
	"io"

	"tablexform/internal/row"
)

// Source opens a stream of raw bytes, e.g. a CSV file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// RowSource delivers a typed row stream. Schema is called once, before the
// first Next. Next returns io.EOF after the last row. Rows returned by Next
// are owned by the caller.
type RowSource interface {
	Schema(ctx context.Context) (row.Schema, error)
	Next(ctx context.Context) (row.Row, error)
	Close() error
}

// SliceSource is an in-memory RowSource, mostly for tests and for feeding a
// materialized table back into a pipeline.
type SliceSource struct {
	schema row.Schema
	rows   []row.Row
	pos    int
}

// NewSliceSource returns a RowSource over rows with the given schema.
func NewSliceSource(schema row.Schema, rows []row.Row) *SliceSource {
	return &SliceSource{schema: schema, rows: rows}
}

func (s *SliceSource) Schema(ctx context.Context) (row.Schema, error) {
	if err := ctx.Err(); err != nil {
		return row.Schema{}, err
	}
	return s.schema, nil
}

func (s *SliceSource) Next(ctx context.Context) (row.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r.Clone(), nil
}

func (s *SliceSource) Close() error { return nil }
