package builtin

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

// Coerce policies for values that cannot be converted.
const (
	CoerceFail = "fail"
	CoerceNull = "null"
	CoerceDrop = "drop"
)

// Coerce is a streaming stage that changes the kind of selected columns,
// converting their values as rows pass through.
type Coerce struct {
	// Types maps column name to target kind name (see row.ParseKind).
	Types map[string]string
	// OnError is CoerceFail (default), CoerceNull or CoerceDrop.
	OnError string

	// Layout, when set, is tried first for text converted to a time.
	Layout string

	// Truthy and Falsy replace the default boolean vocabulary for text
	// converted to a bool. Matching is case-insensitive.
	Truthy []string
	Falsy  []string

	out         row.Schema
	plan        []coercePlan
	truthy      map[string]struct{}
	falsy       map[string]struct{}
	customBools bool
}

type coercePlan struct {
	col  int
	kind row.Kind
}

// NewCoerce builds a Coerce from options "types" (object), "on_error",
// "layout", "truthy" and "falsy".
func NewCoerce(opts config.Options) (*Coerce, error) {
	c := &Coerce{
		Types:   opts.StringMap("types"),
		OnError: strings.ToLower(opts.String("on_error", CoerceFail)),
		Layout:  opts.String("layout", ""),
		Truthy:  opts.StringSlice("truthy"),
		Falsy:   opts.StringSlice("falsy"),
	}
	switch c.OnError {
	case CoerceFail, CoerceNull, CoerceDrop:
	default:
		return nil, fmt.Errorf("coerce: unknown on_error %q", c.OnError)
	}
	return c, nil
}

func (c *Coerce) Initialize(in row.Schema) (row.Schema, bool, error) {
	cols := in.Columns()
	c.plan = c.plan[:0]
	c.truthy, c.falsy = lowerSet(c.Truthy), lowerSet(c.Falsy)
	c.customBools = c.truthy != nil || c.falsy != nil

	names := make([]string, 0, len(c.Types))
	for n := range c.Types {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		i, ok := in.Index(n)
		if !ok {
			return row.Schema{}, false, &transformer.SchemaError{Column: n, Err: transformer.ErrColumnNotFound}
		}
		k, err := row.ParseKind(c.Types[n])
		if err != nil {
			return row.Schema{}, false, &transformer.SchemaError{Column: n, Err: err}
		}
		cols[i].Kind = k
		c.plan = append(c.plan, coercePlan{col: i, kind: k})
	}
	out, err := row.NewSchema(cols...)
	if err != nil {
		return row.Schema{}, false, err
	}
	c.out = out
	return out, true, nil
}

func (c *Coerce) ConsumeRow(in row.Row) ([]row.Row, error) {
	out := in.Clone()
	for _, p := range c.plan {
		v, err := c.convert(p.kind, in[p.col])
		if err != nil {
			switch c.OnError {
			case CoerceNull:
				v = row.Null()
			case CoerceDrop:
				return nil, nil
			default:
				return nil, fmt.Errorf("coerce column [%s]: %w", c.out.Column(p.col).Name, err)
			}
		}
		out[p.col] = v
	}
	return []row.Row{out}, nil
}

func (c *Coerce) convert(k row.Kind, v row.Value) (row.Value, error) {
	s, isText := v.AsText()
	if !isText {
		return row.Coerce(k, v.Any())
	}
	st := strings.TrimSpace(s)
	switch {
	case k == row.KindTime && c.Layout != "" && st != "":
		if t, err := time.Parse(c.Layout, st); err == nil {
			return row.Time(t), nil
		}
	case k == row.KindBool && c.customBools && st != "":
		ls := strings.ToLower(st)
		if _, ok := c.truthy[ls]; ok {
			return row.Bool(true), nil
		}
		if _, ok := c.falsy[ls]; ok {
			return row.Bool(false), nil
		}
		return row.Null(), fmt.Errorf("coerce: %q is neither truthy nor falsy", s)
	}
	return row.Coerce(k, s)
}

// lowerSet builds a lowercased membership set. Empty input returns nil.
func lowerSet(in []string) map[string]struct{} {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	for _, s := range in {
		m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}

func (c *Coerce) PreFinalize() (row.Schema, error) { return c.out, nil }
func (c *Coerce) Finalize() ([]row.Row, error)     { return nil, nil }
