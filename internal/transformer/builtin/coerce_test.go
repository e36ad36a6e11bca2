package builtin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

var rawSchema = row.MustSchema(
	row.Column{Name: "pcv", Kind: row.KindText},
	row.Column{Name: "date_from", Kind: row.KindText},
	row.Column{Name: "active", Kind: row.KindText},
	row.Column{Name: "note", Kind: row.KindText},
)

func TestCoerce_Basics(t *testing.T) {
	c, err := NewCoerce(config.Options{
		"types": map[string]any{"pcv": "int", "date_from": "date", "active": "bool"},
	})
	require.NoError(t, err)
	out, rows := drive(t, c, rawSchema,
		row.Row{text("10"), text("13.08.2018"), text("yes"), text("x")},
		row.Row{text(""), text(""), text(""), text("")},
	)
	require.Equal(t, []row.Kind{row.KindInt, row.KindTime, row.KindBool, row.KindText},
		[]row.Kind{out.Column(0).Kind, out.Column(1).Kind, out.Column(2).Kind, out.Column(3).Kind})

	n, ok := rows[0][0].AsInt()
	require.True(t, ok)
	require.EqualValues(t, 10, n)
	ts, ok := rows[0][1].AsTime()
	require.True(t, ok)
	require.Equal(t, time.Date(2018, 8, 13, 0, 0, 0, 0, time.UTC), ts)
	b, ok := rows[0][2].AsBool()
	require.True(t, ok && b)

	for i := 0; i < 3; i++ {
		require.True(t, rows[1][i].IsNull(), "empty text becomes null for column %d", i)
	}
}

func TestCoerce_LayoutAndVocabulary(t *testing.T) {
	c, err := NewCoerce(config.Options{
		"types":  map[string]any{"date_from": "date", "active": "bool"},
		"layout": "2006/01/02",
		"truthy": []any{"Ano"},
		"falsy":  []any{"ne"},
	})
	require.NoError(t, err)
	_, rows := drive(t, c, rawSchema,
		row.Row{text("1"), text("2024/02/29"), text("ANO"), text("")},
		row.Row{text("1"), text("2024-03-01"), text("ne"), text("")},
	)
	ts, _ := rows[0][1].AsTime()
	require.Equal(t, "2024-02-29", ts.Format("2006-01-02"))
	ts, _ = rows[1][1].AsTime()
	require.Equal(t, "2024-03-01", ts.Format("2006-01-02"), "layout falls back to the built-in formats")

	b, _ := rows[0][2].AsBool()
	require.True(t, b)
	b, _ = rows[1][2].AsBool()
	require.False(t, b)

	_, _, err = c.Initialize(rawSchema)
	require.NoError(t, err)
	_, err = c.ConsumeRow(row.Row{text("1"), text(""), text("yes"), text("")})
	require.Error(t, err, "custom vocabulary replaces the default one")
}

func TestCoerce_OnErrorPolicies(t *testing.T) {
	bad := row.Row{text("ten"), text(""), text(""), text("")}

	c, err := NewCoerce(config.Options{"types": map[string]any{"pcv": "int"}})
	require.NoError(t, err)
	_, _, err = c.Initialize(rawSchema)
	require.NoError(t, err)
	_, err = c.ConsumeRow(bad)
	require.ErrorContains(t, err, "coerce column [pcv]")

	c, err = NewCoerce(config.Options{"types": map[string]any{"pcv": "int"}, "on_error": "null"})
	require.NoError(t, err)
	_, rows := drive(t, c, rawSchema, bad)
	require.True(t, rows[0][0].IsNull())
	require.Equal(t, "ten", bad[0].Canonical(), "input row must not change")

	c, err = NewCoerce(config.Options{"types": map[string]any{"pcv": "int"}, "on_error": "drop"})
	require.NoError(t, err)
	_, rows = drive(t, c, rawSchema, bad, row.Row{text("3"), text(""), text(""), text("")})
	require.Equal(t, [][]string{{"3", "", "", ""}}, strs(rows))

	_, err = NewCoerce(config.Options{"on_error": "explode"})
	require.Error(t, err)
}

func TestCoerce_SchemaErrors(t *testing.T) {
	c, err := NewCoerce(config.Options{"types": map[string]any{"missing": "int"}})
	require.NoError(t, err)
	_, _, err = c.Initialize(rawSchema)
	require.ErrorIs(t, err, transformer.ErrColumnNotFound)

	c, err = NewCoerce(config.Options{"types": map[string]any{"pcv": "uuid"}})
	require.NoError(t, err)
	_, _, err = c.Initialize(rawSchema)
	var se *transformer.SchemaError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "pcv", se.Column)
}
