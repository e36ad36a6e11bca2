// Package row is the typed row model shared by every pipeline stage: column
// kinds, immutable values, ordered schemas and positional rows.
//
// Values carry a canonical text projection used for grouping and equality.
// The projection is total; null projects to the empty string.
package row

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the supported column primitive kinds.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindDecimal
	KindText
	KindTime
	KindBool
)

var kindNames = [...]string{
	KindNull:    "null",
	KindInt:     "int",
	KindFloat:   "float",
	KindDecimal: "decimal",
	KindText:    "text",
	KindTime:    "time",
	KindBool:    "bool",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a config/type-name string onto a Kind. It accepts the names
// printed by Kind.String plus the common SQL spellings.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null":
		return KindNull, nil
	case "int", "integer", "bigint", "smallint", "int64":
		return KindInt, nil
	case "float", "real", "double", "float64":
		return KindFloat, nil
	case "decimal", "numeric", "number", "money":
		return KindDecimal, nil
	case "text", "string", "varchar", "char", "nvarchar":
		return KindText, nil
	case "time", "date", "datetime", "timestamp", "timestamptz":
		return KindTime, nil
	case "bool", "boolean", "bit":
		return KindBool, nil
	}
	return KindNull, fmt.Errorf("unknown column kind %q", s)
}

// Value is an immutable tagged union over the supported kinds. The zero Value
// is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	d    decimal.Decimal
	s    string
	t    time.Time
}

func Null() Value                     { return Value{} }
func Int(v int64) Value               { return Value{kind: KindInt, i: v} }
func Float(v float64) Value           { return Value{kind: KindFloat, f: v} }
func Decimal(v decimal.Decimal) Value { return Value{kind: KindDecimal, d: v} }
func Text(v string) Value             { return Value{kind: KindText, s: v} }
func Time(v time.Time) Value          { return Value{kind: KindTime, t: v} }

func Bool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

// Zero returns the typed "missing" value for kind k: 0, 0.0, decimal zero,
// empty text, the zero time or false. KindNull yields null.
func Zero(k Kind) Value {
	switch k {
	case KindInt, KindFloat, KindText, KindTime, KindBool:
		return Value{kind: k}
	case KindDecimal:
		return Decimal(decimal.Zero)
	}
	return Null()
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsInt() (int64, bool)               { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)           { return v.f, v.kind == KindFloat }
func (v Value) AsDecimal() (decimal.Decimal, bool) { return v.d, v.kind == KindDecimal }
func (v Value) AsText() (string, bool)             { return v.s, v.kind == KindText }
func (v Value) AsTime() (time.Time, bool)          { return v.t, v.kind == KindTime }
func (v Value) AsBool() (bool, bool)               { return v.i != 0, v.kind == KindBool }

// Any returns the plain Go value suitable for database/sql and pgx COPY.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindDecimal:
		return v.d
	case KindText:
		return v.s
	case KindTime:
		return v.t
	case KindBool:
		return v.i != 0
	}
	return nil
}

// Canonical is the deterministic text projection used for grouping. Two
// non-null values of the same kind share a projection only when they are the
// same number, text, instant or truth value.
func (v Value) Canonical() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDecimal:
		// String() drops trailing zeros, so 1.50 and 1.5 project alike.
		return v.d.String()
	case KindText:
		return v.s
	case KindTime:
		return v.t.UTC().Format(time.RFC3339Nano)
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	}
	return ""
}

func (v Value) String() string { return v.Canonical() }

// Equal reports whether v and o have the same kind and canonical projection.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.Canonical() == o.Canonical()
}

// FromAny converts a driver-level Go value into a Value, inferring the kind.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case int64:
		return Int(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Decimal(decimal.NewFromUint64(t)), nil
		}
		return Int(int64(t)), nil
	case float64:
		return Float(t), nil
	case float32:
		return Float(float64(t)), nil
	case decimal.Decimal:
		return Decimal(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Text(string(t)), nil
	case time.Time:
		return Time(t), nil
	case bool:
		return Bool(t), nil
	}
	return Null(), fmt.Errorf("row: unsupported value type %T", x)
}

// Coerce converts a driver-level Go value into a Value of kind k. Textual
// input (string, []byte) is parsed; numeric input is widened or narrowed where
// lossless. nil always yields null.
func Coerce(k Kind, x any) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	switch t := x.(type) {
	case string:
		return Parse(k, t)
	case []byte:
		if k == KindText {
			return Text(string(t)), nil
		}
		return Parse(k, string(t))
	}
	v, err := FromAny(x)
	if err != nil {
		return Null(), err
	}
	if v.kind == k {
		return v, nil
	}
	switch k {
	case KindText:
		return Text(v.Canonical()), nil
	case KindDecimal:
		switch v.kind {
		case KindInt:
			return Decimal(decimal.NewFromInt(v.i)), nil
		case KindFloat:
			return Decimal(decimal.NewFromFloat(v.f)), nil
		}
	case KindFloat:
		switch v.kind {
		case KindInt:
			return Float(float64(v.i)), nil
		case KindDecimal:
			f, _ := v.d.Float64()
			return Float(f), nil
		}
	case KindInt:
		switch v.kind {
		case KindDecimal:
			if v.d.IsInteger() {
				return Int(v.d.IntPart()), nil
			}
		case KindFloat:
			if v.f == math.Trunc(v.f) {
				return Int(int64(v.f)), nil
			}
		case KindBool:
			return Int(v.i), nil
		}
	case KindBool:
		if v.kind == KindInt {
			return Bool(v.i != 0), nil
		}
	}
	return Null(), fmt.Errorf("row: cannot coerce %s value %q to %s", v.kind, v.Canonical(), k)
}

// timeLayouts are tried in order by Parse for KindTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
}

// Parse converts text into a Value of kind k. Empty (after trimming) text
// yields null for every kind except KindText.
func Parse(k Kind, s string) (Value, error) {
	if k == KindText {
		return Text(s), nil
	}
	st := strings.TrimSpace(s)
	if st == "" {
		return Null(), nil
	}
	switch k {
	case KindNull:
		return Null(), nil
	case KindInt:
		n, err := strconv.ParseInt(st, 10, 64)
		if err != nil {
			return Null(), fmt.Errorf("row: parse int %q: %w", s, err)
		}
		return Int(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(st, 64)
		if err != nil {
			return Null(), fmt.Errorf("row: parse float %q: %w", s, err)
		}
		return Float(f), nil
	case KindDecimal:
		d, err := decimal.NewFromString(st)
		if err != nil {
			return Null(), fmt.Errorf("row: parse decimal %q: %w", s, err)
		}
		return Decimal(d), nil
	case KindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, st); err == nil {
				return Time(t), nil
			}
		}
		return Null(), fmt.Errorf("row: parse time %q: no matching layout", s)
	case KindBool:
		switch strings.ToLower(st) {
		case "1", "t", "true", "y", "yes":
			return Bool(true), nil
		case "0", "f", "false", "n", "no":
			return Bool(false), nil
		}
		return Null(), fmt.Errorf("row: parse bool %q", s)
	}
	return Null(), fmt.Errorf("row: parse: unknown kind %s", k)
}
