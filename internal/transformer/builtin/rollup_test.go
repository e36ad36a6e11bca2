package builtin

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

var lotSchema = row.MustSchema(
	row.Column{Name: "LOT", Kind: row.KindText},
	row.Column{Name: "NAME", Kind: row.KindText},
	row.Column{Name: "VAL", Kind: row.KindInt},
)

func newLotRollup(t *testing.T, extra config.Options) *Rollup {
	t.Helper()
	opts := config.Options{"name_column": "name", "value_column": "val"}
	for k, v := range extra {
		opts[k] = v
	}
	r, err := NewRollup(opts)
	require.NoError(t, err)
	return r
}

func TestRollup_LotScenario(t *testing.T) {
	r := newLotRollup(t, nil)
	out, rows := drive(t, r, lotSchema,
		row.Row{text("A"), text("T_BAD"), num(2)},
		row.Row{text("A"), text("T_GOOD"), num(10)},
		row.Row{text("B"), text("T_GOOD"), num(5)},
	)
	require.Equal(t, []string{"LOT", "T_BAD", "T_GOOD"}, out.Names())
	require.Equal(t, row.KindInt, out.Column(1).Kind)
	require.Equal(t, [][]string{{"A", "2", "10"}, {"B", "0", "5"}}, strs(rows))
	require.Equal(t, row.KindInt, rows[1][1].Kind(), "missing pivot must be a typed zero, not null")
}

func TestRollup_NaturalColumnOrder(t *testing.T) {
	r := newLotRollup(t, nil)
	var in []row.Row
	for _, n := range []string{"IB1", "IB2", "IB9", "IB10", "IB20", "FB1"} {
		in = append(in, row.Row{text("L"), text(n), num(1)})
	}
	out, rows := drive(t, r, lotSchema, in...)
	require.Equal(t, []string{"LOT", "FB1", "IB1", "IB2", "IB9", "IB10", "IB20"}, out.Names())
	require.Len(t, rows, 1)
}

func TestSortNatural(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"suffix numbers", []string{"IB10", "IB9", "IB1"}, []string{"IB1", "IB9", "IB10"}},
		{"longer than pad", []string{"X123456789012", "X9", "X99999999"}, []string{"X9", "X99999999", "X123456789012"}},
		{"no suffix uses full text", []string{"b", "a-2", "a"}, []string{"a", "a-2", "b"}},
		{"leading zeros tie on text", []string{"IB1", "IB01"}, []string{"IB01", "IB1"}},
		{"space and underscore prefixes", []string{"T 2", "T_1", "T 10"}, []string{"T 2", "T 10", "T_1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]string(nil), tt.in...)
			SortNatural(got)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRollup_LastWriteWins(t *testing.T) {
	r := newLotRollup(t, nil)
	_, rows := drive(t, r, lotSchema,
		row.Row{text("A"), text("T"), num(1)},
		row.Row{text("A"), text("T"), num(7)},
	)
	require.Equal(t, [][]string{{"A", "7"}}, strs(rows))
}

func TestRollup_StrictRejectsDuplicate(t *testing.T) {
	r := newLotRollup(t, config.Options{"strict": true})
	_, _, err := r.Initialize(lotSchema)
	require.NoError(t, err)
	_, err = r.ConsumeRow(row.Row{text("A"), text("T"), num(1)})
	require.NoError(t, err)
	_, err = r.ConsumeRow(row.Row{text("B"), text("T"), num(1)})
	require.NoError(t, err, "same pivot in another group is fine")
	_, err = r.ConsumeRow(row.Row{text("A"), text("T"), num(2)})

	var dup *DuplicateContributionError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "T", dup.Pivot)
	require.Equal(t, row.GroupKey{"A"}, dup.Group)
}

func TestRollup_MissingColumn(t *testing.T) {
	cases := []struct {
		name    string
		opts    config.Options
		missing string
	}{
		{"value column", config.Options{"name_column": "NAME", "value_column": "RESULT"}, "RESULT"},
		{"name column", config.Options{"name_column": "TEST", "value_column": "VAL"}, "TEST"},
		{"both", config.Options{"name_column": "TEST", "value_column": "RESULT"}, "TEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRollup(tc.opts)
			require.NoError(t, err)
			_, _, err = r.Initialize(lotSchema)

			var se *transformer.SchemaError
			require.ErrorAs(t, err, &se)
			require.Equal(t, tc.missing, se.Column)
			require.ErrorIs(t, err, transformer.ErrColumnNotFound)
		})
	}
}

func TestRollup_DefaultColumns(t *testing.T) {
	r, err := NewRollup(config.Options{})
	require.NoError(t, err)
	s := row.MustSchema(
		row.Column{Name: "k", Kind: row.KindText},
		row.Column{Name: "rollup_name", Kind: row.KindText},
		row.Column{Name: "Rollup_Value", Kind: row.KindText},
	)
	out, rows := drive(t, r, s, row.Row{text("x"), text("p"), text("v")})
	require.Equal(t, []string{"k", "p"}, out.Names())
	require.Equal(t, [][]string{{"x", "v"}}, strs(rows))
}

func TestRollup_Idempotent(t *testing.T) {
	in := []row.Row{
		{text("B"), text("IB10"), num(1)},
		{text("A"), text("IB9"), num(2)},
		{text("B"), text("FB1"), num(3)},
	}
	out1, rows1 := drive(t, newLotRollup(t, nil), lotSchema, in...)
	out2, rows2 := drive(t, newLotRollup(t, nil), lotSchema, in...)
	require.True(t, out1.Equal(out2))
	require.Equal(t, strs(rows1), strs(rows2))
	require.Equal(t, "B", rows1[0][0].Canonical(), "groups keep discovery order")
}

func TestRollup_SortedGroupOrder(t *testing.T) {
	r := newLotRollup(t, config.Options{"group_order": "sorted"})
	_, rows := drive(t, r, lotSchema,
		row.Row{text("B"), text("T"), num(1)},
		row.Row{text("A"), text("T"), num(2)},
	)
	require.Equal(t, [][]string{{"A", "2"}, {"B", "1"}}, strs(rows))
}

func TestRollup_NullPivotRegistersGroupOnly(t *testing.T) {
	r := newLotRollup(t, nil)
	out, rows := drive(t, r, lotSchema,
		row.Row{text("A"), row.Null(), num(5)},
		row.Row{text("B"), text("T"), num(1)},
	)
	require.Equal(t, []string{"LOT", "T"}, out.Names())
	require.Equal(t, [][]string{{"A", "0"}, {"B", "1"}}, strs(rows))
}

func TestRollup_PivotCollidesWithBaseColumn(t *testing.T) {
	r := newLotRollup(t, nil)
	_, _, err := r.Initialize(lotSchema)
	require.NoError(t, err)
	_, err = r.ConsumeRow(row.Row{text("A"), text("lot"), num(1)})
	require.NoError(t, err)

	_, err = r.PreFinalize()
	var se *transformer.SchemaError
	require.ErrorAs(t, err, &se)
	require.ErrorIs(t, err, transformer.ErrDuplicateColumn)
}

func TestRollup_DecimalZeroAndGroups(t *testing.T) {
	s := row.MustSchema(
		row.Column{Name: "LOT", Kind: row.KindText},
		row.Column{Name: "NAME", Kind: row.KindText},
		row.Column{Name: "VAL", Kind: row.KindDecimal},
	)
	r := newLotRollup(t, nil)
	_, _, err := r.Initialize(s)
	require.NoError(t, err)
	for _, in := range []row.Row{
		{text("A"), text("X"), row.Decimal(decimal.RequireFromString("1.25"))},
		{text("B"), text("Y"), row.Decimal(decimal.RequireFromString("3"))},
	} {
		_, err := r.ConsumeRow(in)
		require.NoError(t, err)
	}
	require.Equal(t, 2, r.Groups())

	_, err = r.PreFinalize()
	require.NoError(t, err)
	rows, err := r.Finalize()
	require.NoError(t, err)
	d, ok := rows[0][2].AsDecimal()
	require.True(t, ok)
	require.True(t, d.IsZero())
}

func TestRollup_DoesNotMutateInput(t *testing.T) {
	in := row.Row{text("A"), text("T"), num(1)}
	drive(t, newLotRollup(t, nil), lotSchema, in)
	require.Equal(t, []string{"A", "T", "1"}, in.Strings())
}

func TestRollup_FinalizeBeforePreFinalize(t *testing.T) {
	r := newLotRollup(t, nil)
	_, _, err := r.Initialize(lotSchema)
	require.NoError(t, err)
	_, err = r.Finalize()
	require.Error(t, err)
}

func TestNewRollup_BadOptions(t *testing.T) {
	_, err := NewRollup(config.Options{"name_column": "X", "value_column": "x"})
	require.Error(t, err)
	_, err = NewRollup(config.Options{"group_order": "random"})
	require.Error(t, err)
}
