// Package csvsink writes pipeline output as CSV. A file sink writes to a
// temporary file next to the target and renames it on Commit, so an aborted
// run never leaves a partial file at the target path.
package csvsink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tablexform/internal/row"
	"tablexform/internal/storage"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

// Sink is a storage.Sink producing a header line followed by one record per
// row. Values use their canonical text; nulls are empty fields.
type Sink struct {
	path  string
	comma rune

	out  io.Writer
	tmp  *os.File
	w    *csv.Writer
	rows int64
}

var _ storage.Sink = (*Sink)(nil)

// New returns a sink writing to path, or to stdout when path is "-". A zero
// comma means ','.
func New(path string, comma rune) *Sink {
	return &Sink{path: path, comma: comma}
}

// NewWriter returns a sink writing to w. Commit flushes but never closes w.
func NewWriter(w io.Writer, comma rune) *Sink {
	return &Sink{out: w, comma: comma}
}

func (s *Sink) Begin(ctx context.Context, schema row.Schema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.w != nil {
		return fmt.Errorf("csvsink: Begin called twice")
	}
	switch {
	case s.out != nil:
	case s.path == Stdout:
		s.out = os.Stdout
	default:
		tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
		if err != nil {
			return fmt.Errorf("csvsink: %w", err)
		}
		s.tmp, s.out = tmp, tmp
	}
	s.w = csv.NewWriter(s.out)
	if s.comma != 0 {
		s.w.Comma = s.comma
	}
	return s.w.Write(schema.Names())
}

func (s *Sink) Write(_ context.Context, r row.Row) error {
	if s.w == nil {
		return fmt.Errorf("csvsink: Write before Begin")
	}
	if err := s.w.Write(r.Strings()); err != nil {
		return fmt.Errorf("csvsink: row %d: %w", s.rows+1, err)
	}
	s.rows++
	return nil
}

func (s *Sink) Commit(context.Context) error {
	if s.w == nil {
		return fmt.Errorf("csvsink: Commit before Begin")
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.discard()
		return fmt.Errorf("csvsink: flush: %w", err)
	}
	if s.tmp == nil {
		return nil
	}
	name := s.tmp.Name()
	if err := s.tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("csvsink: close: %w", err)
	}
	s.tmp = nil
	if err := os.Rename(name, s.path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("csvsink: %w", err)
	}
	return nil
}

func (s *Sink) Abort(context.Context) error {
	s.discard()
	return nil
}

// Rows returns the number of data rows written.
func (s *Sink) Rows() int64 { return s.rows }

func (s *Sink) discard() {
	if s.tmp != nil {
		name := s.tmp.Name()
		_ = s.tmp.Close()
		_ = os.Remove(name)
		s.tmp = nil
	}
}
