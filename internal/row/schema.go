package row

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Column is a named, typed position in a Schema.
type Column struct {
	Name string
	Kind Kind
}

// Schema is an ordered list of columns. Column names are unique under Unicode
// case folding; order defines row layout. The zero Schema has no columns.
type Schema struct {
	cols  []Column
	index map[string]int // folded name -> position
}

// Fold returns the case-insensitive identity of a column name.
//
// A cases.Caser is stateful, so a fresh one is used per call.
func Fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// DuplicateColumnError reports a column name that folds onto an existing one.
type DuplicateColumnError struct {
	Name     string
	Existing string
}

func (e *DuplicateColumnError) Error() string {
	if e.Existing != "" && e.Existing != e.Name {
		return fmt.Sprintf("duplicate column %q (collides with %q)", e.Name, e.Existing)
	}
	return fmt.Sprintf("duplicate column %q", e.Name)
}

// NewSchema builds a Schema from cols in order.
func NewSchema(cols ...Column) (Schema, error) {
	return Schema{}.Append(cols...)
}

// MustSchema is NewSchema that panics on duplicate names. Intended for tests
// and static schemas.
func MustSchema(cols ...Column) Schema {
	s, err := NewSchema(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schema) Len() int { return len(s.cols) }

// Column returns the column at position i.
func (s Schema) Column(i int) Column { return s.cols[i] }

// Columns returns a copy of the ordered columns.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of name, matched case-insensitively.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[Fold(name)]
	return i, ok
}

// Append returns a new Schema with cols added after the existing columns.
// The receiver is not modified.
func (s Schema) Append(cols ...Column) (Schema, error) {
	out := Schema{
		cols:  make([]Column, 0, len(s.cols)+len(cols)),
		index: make(map[string]int, len(s.cols)+len(cols)),
	}
	out.cols = append(out.cols, s.cols...)
	for k, v := range s.index {
		out.index[k] = v
	}
	for _, c := range cols {
		key := Fold(c.Name)
		if j, dup := out.index[key]; dup {
			return Schema{}, &DuplicateColumnError{Name: c.Name, Existing: out.cols[j].Name}
		}
		out.index[key] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out, nil
}

// Without returns a new Schema with the columns at the given positions
// removed. Out-of-range positions are ignored.
func (s Schema) Without(positions ...int) Schema {
	drop := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		drop[p] = struct{}{}
	}
	kept := make([]Column, 0, len(s.cols))
	for i, c := range s.cols {
		if _, ok := drop[i]; !ok {
			kept = append(kept, c)
		}
	}
	// Names were unique before removal, so this cannot fail.
	out, _ := NewSchema(kept...)
	return out
}

// Equal reports whether both schemas have the same folded names and kinds in
// the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.cols) != len(o.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i].Kind != o.cols[i].Kind || Fold(s.cols[i].Name) != Fold(o.cols[i].Name) {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range s.cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(c.Kind.String())
	}
	b.WriteByte(']')
	return b.String()
}
