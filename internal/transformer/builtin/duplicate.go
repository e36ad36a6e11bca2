package builtin

import (
	"fmt"

	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

// duplicateSuffix is appended to the first column's name and text.
const duplicateSuffix = "_2"

// duplicateLayout computes the output schema shared by the streaming and the
// buffering duplicate stages: the first column is followed by a text copy
// named "<first>_2".
func duplicateLayout(in row.Schema) (row.Schema, error) {
	if in.Len() == 0 {
		return row.Schema{}, &transformer.SchemaError{Column: "<first>", Err: transformer.ErrColumnNotFound}
	}
	first := in.Column(0)
	cols := make([]row.Column, 0, in.Len()+1)
	cols = append(cols, first, row.Column{Name: first.Name + duplicateSuffix, Kind: row.KindText})
	cols = append(cols, in.Columns()[1:]...)
	out, err := row.NewSchema(cols...)
	if err != nil {
		return row.Schema{}, &transformer.SchemaError{Column: first.Name + duplicateSuffix, Err: fmt.Errorf("%w: %v", transformer.ErrDuplicateColumn, err)}
	}
	return out, nil
}

func duplicateRow(in row.Row) row.Row {
	out := make(row.Row, 0, len(in)+1)
	out = append(out, in[0], row.Text(in[0].Canonical()+duplicateSuffix))
	return append(out, in[1:]...)
}

// DuplicateFirst is a streaming stage that inserts a text copy of the first
// column, suffixed with "_2", right after it.
type DuplicateFirst struct {
	out row.Schema
}

func (d *DuplicateFirst) Initialize(in row.Schema) (row.Schema, bool, error) {
	out, err := duplicateLayout(in)
	if err != nil {
		return row.Schema{}, false, err
	}
	d.out = out
	return out, true, nil
}

func (d *DuplicateFirst) ConsumeRow(in row.Row) ([]row.Row, error) {
	return []row.Row{duplicateRow(in)}, nil
}

func (d *DuplicateFirst) PreFinalize() (row.Schema, error) { return d.out, nil }
func (d *DuplicateFirst) Finalize() ([]row.Row, error)     { return nil, nil }

// BufferedDuplicateFirst produces the same output as DuplicateFirst but holds
// every row until Finalize and reports its schema from PreFinalize.
type BufferedDuplicateFirst struct {
	out  row.Schema
	rows []row.Row
}

func (d *BufferedDuplicateFirst) Initialize(in row.Schema) (row.Schema, bool, error) {
	out, err := duplicateLayout(in)
	if err != nil {
		return row.Schema{}, false, err
	}
	d.out = out
	d.rows = nil
	return row.Schema{}, false, nil
}

func (d *BufferedDuplicateFirst) ConsumeRow(in row.Row) ([]row.Row, error) {
	d.rows = append(d.rows, duplicateRow(in))
	return nil, nil
}

func (d *BufferedDuplicateFirst) PreFinalize() (row.Schema, error) { return d.out, nil }

func (d *BufferedDuplicateFirst) Finalize() ([]row.Row, error) {
	rows := d.rows
	d.rows = nil
	return rows, nil
}

// Passthrough is the identity streaming stage.
type Passthrough struct {
	schema row.Schema
}

func (p *Passthrough) Initialize(in row.Schema) (row.Schema, bool, error) {
	p.schema = in
	return in, true, nil
}

func (p *Passthrough) ConsumeRow(in row.Row) ([]row.Row, error) { return []row.Row{in}, nil }
func (p *Passthrough) PreFinalize() (row.Schema, error)         { return p.schema, nil }
func (p *Passthrough) Finalize() ([]row.Row, error)             { return nil, nil }

func newDuplicateFirst(config.Options) (transformer.Stage, error) { return &DuplicateFirst{}, nil }
func newBufferedDuplicateFirst(config.Options) (transformer.Stage, error) {
	return &BufferedDuplicateFirst{}, nil
}
func newPassthrough(config.Options) (transformer.Stage, error) { return &Passthrough{}, nil }
