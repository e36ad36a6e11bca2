// Package builtin contains the stages shipped with tablexform: the rollup
// pivot, the duplicate-first-column samples, and small streaming filters.
package builtin

import (
	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

// Require drops every row with a null or empty-text value in any of Fields.
// It is a streaming stage and does not change the schema.
type Require struct {
	Fields []string

	schema row.Schema
	idx    []int
}

// NewRequire builds a Require from the "fields" option.
func NewRequire(opts config.Options) (*Require, error) {
	return &Require{Fields: opts.StringSlice("fields")}, nil
}

func (r *Require) Initialize(in row.Schema) (row.Schema, bool, error) {
	r.idx = r.idx[:0]
	for _, f := range r.Fields {
		i, ok := in.Index(f)
		if !ok {
			return row.Schema{}, false, &transformer.SchemaError{Column: f, Err: transformer.ErrColumnNotFound}
		}
		r.idx = append(r.idx, i)
	}
	r.schema = in
	return in, true, nil
}

func (r *Require) ConsumeRow(in row.Row) ([]row.Row, error) {
	for _, i := range r.idx {
		v := in[i]
		if v.IsNull() {
			return nil, nil
		}
		if s, ok := v.AsText(); ok && s == "" {
			return nil, nil
		}
	}
	return []row.Row{in}, nil
}

func (r *Require) PreFinalize() (row.Schema, error) { return r.schema, nil }
func (r *Require) Finalize() ([]row.Row, error)     { return nil, nil }
