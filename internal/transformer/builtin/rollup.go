package builtin

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

const (
	// DefaultRollupNameColumn and DefaultRollupValueColumn name the pivot
	// columns when the options do not.
	DefaultRollupNameColumn  = "ROLLUP_NAME"
	DefaultRollupValueColumn = "ROLLUP_VALUE"

	// GroupOrderDiscovery emits groups in the order their key was first seen.
	GroupOrderDiscovery = "discovery"
	// GroupOrderSorted emits groups sorted by their key tuple.
	GroupOrderSorted = "sorted"

	minPivotPad = 7
)

// DuplicateContributionError is returned by a strict Rollup when one group
// receives the same pivot name twice.
type DuplicateContributionError struct {
	Pivot string
	Group row.GroupKey
}

func (e *DuplicateContributionError) Error() string {
	return fmt.Sprintf("rollup: duplicate contribution for pivot %q in group %q", e.Pivot, []string(e.Group))
}

// Rollup pivots narrow (name, value) rows into wide rows. Every distinct
// value of NameColumn becomes an output column holding the matching
// ValueColumn value; rows that agree on all remaining columns collapse into
// one output row.
//
// Rollup is a buffering stage: it emits nothing until Finalize.
type Rollup struct {
	NameColumn  string
	ValueColumn string

	// Strict turns a repeated pivot name within one group into an error.
	// Otherwise the last contribution wins.
	Strict bool

	// GroupOrder is GroupOrderDiscovery (default) or GroupOrderSorted.
	GroupOrder string

	nameIx, valueIx int
	valueKind       row.Kind
	base            row.Schema

	groups []*rollupGroup
	index  *row.KeyIndex[*rollupGroup]
	pivots map[string]struct{}

	out      row.Schema
	colIndex map[string]int
}

type rollupGroup struct {
	key      row.GroupKey
	base     row.Row
	contribs []contribution
	seen     map[string]struct{} // strict mode only
}

type contribution struct {
	name  string
	value row.Value
}

// NewRollup builds a Rollup from options:
//
//	name_column  (string, default ROLLUP_NAME)
//	value_column (string, default ROLLUP_VALUE)
//	strict       (bool, default false)
//	group_order  ("discovery" | "sorted", default discovery)
func NewRollup(opts config.Options) (*Rollup, error) {
	r := &Rollup{
		NameColumn:  opts.String("name_column", DefaultRollupNameColumn),
		ValueColumn: opts.String("value_column", DefaultRollupValueColumn),
		Strict:      opts.Bool("strict", false),
		GroupOrder:  strings.ToLower(opts.String("group_order", GroupOrderDiscovery)),
	}
	switch r.GroupOrder {
	case GroupOrderDiscovery, GroupOrderSorted:
	default:
		return nil, fmt.Errorf("rollup: unknown group_order %q", r.GroupOrder)
	}
	if row.Fold(r.NameColumn) == row.Fold(r.ValueColumn) {
		return nil, fmt.Errorf("rollup: name_column and value_column must differ (both %q)", r.NameColumn)
	}
	return r, nil
}

// Initialize locates the pivot columns and removes them from the carried
// schema. The output schema is not known until PreFinalize.
func (r *Rollup) Initialize(in row.Schema) (row.Schema, bool, error) {
	if r.NameColumn == "" {
		r.NameColumn = DefaultRollupNameColumn
	}
	if r.ValueColumn == "" {
		r.ValueColumn = DefaultRollupValueColumn
	}

	var ok bool
	if r.nameIx, ok = in.Index(r.NameColumn); !ok {
		return row.Schema{}, false, &transformer.SchemaError{Column: r.NameColumn, Err: transformer.ErrColumnNotFound}
	}
	if r.valueIx, ok = in.Index(r.ValueColumn); !ok {
		return row.Schema{}, false, &transformer.SchemaError{Column: r.ValueColumn, Err: transformer.ErrColumnNotFound}
	}
	r.valueKind = in.Column(r.valueIx).Kind
	r.base = in.Without(r.nameIx, r.valueIx)

	r.groups = nil
	r.index = row.NewKeyIndex[*rollupGroup]()
	r.pivots = make(map[string]struct{})
	r.colIndex = nil
	return row.Schema{}, false, nil
}

// ConsumeRow files the row's (name, value) pair under its group. A null
// pivot name still registers the group but contributes no column.
func (r *Rollup) ConsumeRow(in row.Row) ([]row.Row, error) {
	nameVal, value := in[r.nameIx], in[r.valueIx]
	base := in.Without(r.nameIx, r.valueIx)
	key := row.KeyOf(base)

	g, ok := r.index.Get(key)
	if !ok {
		g = &rollupGroup{key: key, base: base}
		r.index.Put(key, g)
		r.groups = append(r.groups, g)
	}
	if nameVal.IsNull() {
		return nil, nil
	}

	name := nameVal.Canonical()
	if r.Strict {
		if g.seen == nil {
			g.seen = make(map[string]struct{})
		}
		if _, dup := g.seen[name]; dup {
			return nil, &DuplicateContributionError{Pivot: name, Group: key}
		}
		g.seen[name] = struct{}{}
	}
	g.contribs = append(g.contribs, contribution{name: name, value: value})
	r.pivots[name] = struct{}{}
	return nil, nil
}

// PreFinalize closes column discovery: pivot names are sorted in natural
// order and appended after the base columns with the pivot value kind.
func (r *Rollup) PreFinalize() (row.Schema, error) {
	names := make([]string, 0, len(r.pivots))
	for n := range r.pivots {
		names = append(names, n)
	}
	SortNatural(names)

	cols := make([]row.Column, len(names))
	r.colIndex = make(map[string]int, len(names))
	for i, n := range names {
		cols[i] = row.Column{Name: n, Kind: r.valueKind}
		r.colIndex[n] = r.base.Len() + i
	}
	out, err := r.base.Append(cols...)
	if err != nil {
		return row.Schema{}, &transformer.SchemaError{Column: pivotColumnName(err), Err: fmt.Errorf("%w: %v", transformer.ErrDuplicateColumn, err)}
	}
	r.out = out
	return out, nil
}

// Finalize emits one row per group. Pivot columns without a contribution
// hold the zero value of the pivot kind; repeated contributions overwrite
// earlier ones.
func (r *Rollup) Finalize() ([]row.Row, error) {
	if r.colIndex == nil {
		return nil, fmt.Errorf("rollup: Finalize called before PreFinalize")
	}
	groups := r.groups
	if r.GroupOrder == GroupOrderSorted {
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].key.Compare(groups[j].key) < 0 })
	}

	zero := row.Zero(r.valueKind)
	width := r.out.Len()
	rows := make([]row.Row, 0, len(groups))
	for _, g := range groups {
		out := make(row.Row, width)
		n := copy(out, g.base)
		for i := n; i < width; i++ {
			out[i] = zero
		}
		for _, c := range g.contribs {
			out[r.colIndex[c.name]] = c.value
		}
		rows = append(rows, out)
	}

	r.groups, r.index, r.pivots = nil, nil, nil
	return rows, nil
}

// Groups reports the number of distinct groups seen so far.
func (r *Rollup) Groups() int {
	if r.index == nil {
		return 0
	}
	return r.index.Len()
}

func pivotColumnName(err error) string {
	var dup *row.DuplicateColumnError
	if errors.As(err, &dup) {
		return dup.Name
	}
	return ""
}

var naturalName = regexp.MustCompile(`^([a-zA-Z_ ]+)([0-9]+)$`)

type naturalKey struct {
	prefix string
	digits string // decimal suffix without leading zeros; empty when the name has no suffix
	full   string
}

func naturalKeyOf(s string) naturalKey {
	m := naturalName.FindStringSubmatch(s)
	if m == nil {
		return naturalKey{prefix: s, full: s}
	}
	d := strings.TrimLeft(m[2], "0")
	if d == "" {
		d = "0"
	}
	return naturalKey{prefix: m[1], digits: d, full: s}
}

// sortText renders k the way names are compared: the prefix followed by the
// number zero-padded to width.
func (k naturalKey) sortText(width int) string {
	if k.digits == "" {
		return k.full
	}
	return k.prefix + strings.Repeat("0", width-len(k.digits)) + k.digits
}

// SortNatural sorts names so that a trailing decimal number after a
// letter/underscore/space prefix compares numerically (IB9 before IB10).
// Other names compare by their full text. Ties (IB01 vs IB1) break on the
// original text.
func SortNatural(names []string) {
	keys := make(map[string]naturalKey, len(names))
	width := minPivotPad
	for _, n := range names {
		k := naturalKeyOf(n)
		keys[n] = k
		if len(k.digits) > width {
			width = len(k.digits)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		a, b := keys[names[i]].sortText(width), keys[names[j]].sortText(width)
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}
