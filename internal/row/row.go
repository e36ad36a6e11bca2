package row

import (
	"fmt"
	"sort"
)

// Row is an ordered sequence of values laid out by a Schema. A Row handed to
// a consumer is treated as immutable; stages that need a different row build
// a new one (see Clone and Without).
type Row []Value

// Clone returns a copy of r with its own backing array.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Without returns a copy of r with the given positions removed. Positions
// are removed highest first so lower indexes do not shift underneath.
func (r Row) Without(positions ...int) Row {
	ps := append([]int(nil), positions...)
	sort.Sort(sort.Reverse(sort.IntSlice(ps)))
	out := r.Clone()
	last := -1
	for _, p := range ps {
		if p == last || p < 0 || p >= len(out) {
			continue
		}
		out = append(out[:p], out[p+1:]...)
		last = p
	}
	return out
}

// Any returns the driver-level values of r in order.
func (r Row) Any() []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v.Any()
	}
	return out
}

// Strings returns the canonical projection of every value in r.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = v.Canonical()
	}
	return out
}

// MismatchError describes why a row does not fit a schema. Column is -1 for
// an arity mismatch.
type MismatchError struct {
	Column int
	Want   string
	Got    string
}

func (e *MismatchError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("row arity %s, schema wants %s", e.Got, e.Want)
	}
	return fmt.Sprintf("column %d: value kind %s, schema wants %s", e.Column, e.Got, e.Want)
}

// Conforms checks that r has one value per column of s and that every
// non-null value matches its column's kind.
func (r Row) Conforms(s Schema) error {
	if len(r) != s.Len() {
		return &MismatchError{Column: -1, Want: fmt.Sprint(s.Len()), Got: fmt.Sprint(len(r))}
	}
	for i, v := range r {
		if v.IsNull() {
			continue
		}
		if want := s.Column(i).Kind; v.Kind() != want {
			return &MismatchError{Column: i, Want: want.String(), Got: v.Kind().String()}
		}
	}
	return nil
}
