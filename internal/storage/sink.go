package storage

import (
	"context"
	"fmt"

	"tablexform/internal/row"
)

// Sink receives the output of one pipeline run. The driver calls Begin once
// with the final output schema before any Write, then Commit on success or
// Abort on failure. Rows written before an Abort must be treated as invalid.
type Sink interface {
	Begin(ctx context.Context, schema row.Schema) error
	Write(ctx context.Context, r row.Row) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Table is a fully materialized result set. It implements Sink.
type Table struct {
	Schema row.Schema
	Rows   []row.Row

	begun bool
}

// NewTable returns an empty Table.
func NewTable() *Table { return &Table{} }

func (t *Table) Begin(_ context.Context, schema row.Schema) error {
	if t.begun {
		return fmt.Errorf("table: Begin called twice")
	}
	t.begun = true
	t.Schema = schema
	t.Rows = t.Rows[:0]
	return nil
}

func (t *Table) Write(_ context.Context, r row.Row) error {
	if !t.begun {
		return fmt.Errorf("table: Write before Begin")
	}
	t.Rows = append(t.Rows, r)
	return nil
}

func (t *Table) Commit(context.Context) error { return nil }

func (t *Table) Abort(context.Context) error {
	t.Rows = nil
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnKindError reports a column that two appended tables both carry
// with different kinds.
type ColumnKindError struct {
	Column string
	Have   row.Kind
	Got    row.Kind
}

func (e *ColumnKindError) Error() string {
	return fmt.Sprintf("table: column %s is %s, appended table has %s", e.Column, e.Have, e.Got)
}

// Append copies every row of o into t, matching columns by folded name. An
// empty t (no columns) adopts o's schema. Columns only o carries are added
// after t's columns and back-filled with row.Zero in rows t already holds;
// columns o lacks are zero-filled in the copied rows. A shared column with
// different kinds is a *ColumnKindError and leaves t unchanged.
func (t *Table) Append(o *Table) error {
	if o == nil {
		return nil
	}
	if t.Schema.Len() == 0 {
		t.Schema = o.Schema
		t.begun = true
		t.Rows = append(t.Rows, o.Rows...)
		return nil
	}
	if t.Schema.Equal(o.Schema) {
		t.Rows = append(t.Rows, o.Rows...)
		return nil
	}

	var added []row.Column
	for _, c := range o.Schema.Columns() {
		j, ok := t.Schema.Index(c.Name)
		if !ok {
			added = append(added, c)
			continue
		}
		if have := t.Schema.Column(j).Kind; have != c.Kind {
			return &ColumnKindError{Column: t.Schema.Column(j).Name, Have: have, Got: c.Kind}
		}
	}

	if len(added) > 0 {
		// Names in added are absent from t.Schema, so this cannot fail.
		schema, err := t.Schema.Append(added...)
		if err != nil {
			return err
		}
		width := schema.Len()
		for i, r := range t.Rows {
			wide := make(row.Row, len(r), width)
			copy(wide, r)
			for _, c := range added {
				wide = append(wide, row.Zero(c.Kind))
			}
			t.Rows[i] = wide
		}
		t.Schema = schema
	}

	// src[i] is the position in o of t's column i, or -1.
	src := make([]int, t.Schema.Len())
	for i, c := range t.Schema.Columns() {
		src[i] = -1
		if j, ok := o.Schema.Index(c.Name); ok {
			src[i] = j
		}
	}
	for _, r := range o.Rows {
		out := make(row.Row, len(src))
		for i, j := range src {
			if j < 0 {
				out[i] = row.Zero(t.Schema.Column(i).Kind)
				continue
			}
			out[i] = r[j]
		}
		t.Rows = append(t.Rows, out)
	}
	return nil
}

// Replay writes the whole table into another sink.
func (t *Table) Replay(ctx context.Context, s Sink) error {
	if err := s.Begin(ctx, t.Schema); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := s.Write(ctx, r); err != nil {
			_ = s.Abort(ctx)
			return err
		}
	}
	return s.Commit(ctx)
}
