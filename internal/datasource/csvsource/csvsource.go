// Package csvsource reads a CSV file as a typed row stream. The first record
// is the header; each header cell names a column. Column kinds come from
// Options.Kinds (matched case-insensitively) and default to text.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"tablexform/internal/datasource"
	"tablexform/internal/row"
)

// Options configures a Source.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// Kinds maps header names to column kinds. Every entry must match a
	// header cell.
	Kinds map[string]row.Kind

	// NormalizeHeaders rewrites header cells with NormalizeHeader before
	// they become column names. Kinds keys are matched after rewriting.
	NormalizeHeaders bool

	// KeepSpace disables trimming of surrounding whitespace in text cells.
	// Non-text cells are always trimmed before parsing.
	KeepSpace bool
}

// Source is a datasource.RowSource over CSV bytes.
type Source struct {
	src  datasource.Source
	opts Options

	once   sync.Once
	err    error
	rc     io.ReadCloser
	cr     *csv.Reader
	schema row.Schema
	kinds  []row.Kind
}

// New returns a Source reading from src. Nothing is opened until Schema.
func New(src datasource.Source, opts Options) *Source {
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	return &Source{src: src, opts: opts}
}

// Schema opens the underlying source and reads the header. Later calls
// return the same schema.
func (s *Source) Schema(ctx context.Context) (row.Schema, error) {
	s.once.Do(func() { s.err = s.open(ctx) })
	return s.schema, s.err
}

func (s *Source) open(ctx context.Context) error {
	rc, err := s.src.Open(ctx)
	if err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	s.rc = rc

	cr := csv.NewReader(rc)
	cr.Comma = s.opts.Comma
	cr.ReuseRecord = true
	s.cr = cr

	hdr, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("csv: missing header")
		}
		return fmt.Errorf("csv: read header: %w", err)
	}
	hdr = cleanHeader(hdr)

	unmatched := make(map[string]row.Kind, len(s.opts.Kinds))
	for name, k := range s.opts.Kinds {
		unmatched[row.Fold(name)] = k
	}

	cols := make([]row.Column, len(hdr))
	for i, h := range hdr {
		if s.opts.NormalizeHeaders {
			h = NormalizeHeader(h)
		}
		k := row.KindText
		if dk, ok := unmatched[row.Fold(h)]; ok {
			k = dk
			delete(unmatched, row.Fold(h))
		}
		cols[i] = row.Column{Name: h, Kind: k}
	}
	if len(unmatched) > 0 {
		missing := make([]string, 0, len(unmatched))
		for name := range unmatched {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return fmt.Errorf("csv: declared columns not in header: %s", strings.Join(missing, ", "))
	}

	schema, err := row.NewSchema(cols...)
	if err != nil {
		return fmt.Errorf("csv: header: %w", err)
	}
	s.schema = schema
	s.kinds = make([]row.Kind, len(cols))
	for i, c := range cols {
		s.kinds[i] = c.Kind
	}
	cr.FieldsPerRecord = len(cols)
	return nil
}

// Next parses the next record. It returns io.EOF after the last record.
func (s *Source) Next(ctx context.Context) (row.Row, error) {
	if s.cr == nil || s.err != nil {
		return nil, errors.New("csv: Next without a successful Schema")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := s.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		// *csv.ParseError already names the line.
		return nil, fmt.Errorf("csv: %w", err)
	}

	out := make(row.Row, len(rec))
	for i, cell := range rec {
		k := s.kinds[i]
		if k != row.KindText || !s.opts.KeepSpace {
			cell = strings.TrimSpace(cell)
		}
		v, err := row.Parse(k, cell)
		if err != nil {
			line, _ := s.cr.FieldPos(i)
			return nil, fmt.Errorf("csv: line %d column [%s]: %w", line, s.schema.Column(i).Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// Close releases the underlying reader. It is safe to call more than once.
func (s *Source) Close() error {
	if s.rc == nil {
		return nil
	}
	err := s.rc.Close()
	s.rc = nil
	return err
}
