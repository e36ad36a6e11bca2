package builtin

import (
	"strings"

	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

// mojibakeNBSP is a UTF-8 no-break space that was decoded as Latin-1 and
// re-encoded.
const mojibakeNBSP = "\u00c2\u00a0"

// Normalize is a streaming stage that cleans text values: mis-encoded and
// real no-break spaces become plain spaces and surrounding whitespace is
// trimmed. With Fields set only those columns are touched.
type Normalize struct {
	Fields []string

	schema row.Schema
	cols   []bool
}

// NewNormalize builds a Normalize from the optional "fields" option.
func NewNormalize(opts config.Options) (*Normalize, error) {
	return &Normalize{Fields: opts.StringSlice("fields")}, nil
}

func (n *Normalize) Initialize(in row.Schema) (row.Schema, bool, error) {
	n.schema = in
	n.cols = make([]bool, in.Len())
	if len(n.Fields) == 0 {
		for i := range n.cols {
			n.cols[i] = in.Column(i).Kind == row.KindText
		}
		return in, true, nil
	}
	for _, f := range n.Fields {
		i, ok := in.Index(f)
		if !ok {
			return row.Schema{}, false, &transformer.SchemaError{Column: f, Err: transformer.ErrColumnNotFound}
		}
		n.cols[i] = in.Column(i).Kind == row.KindText
	}
	return in, true, nil
}

func (n *Normalize) ConsumeRow(in row.Row) ([]row.Row, error) {
	out := in
	cloned := false
	for i, v := range in {
		if !n.cols[i] {
			continue
		}
		s, ok := v.AsText()
		if !ok {
			continue
		}
		clean := normalizeText(s)
		if clean == s {
			continue
		}
		if !cloned {
			out, cloned = in.Clone(), true
		}
		out[i] = row.Text(clean)
	}
	return []row.Row{out}, nil
}

func (n *Normalize) PreFinalize() (row.Schema, error) { return n.schema, nil }
func (n *Normalize) Finalize() ([]row.Row, error)     { return nil, nil }

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, mojibakeNBSP, " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}
