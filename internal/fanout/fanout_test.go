package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tablexform/internal/config"
	"tablexform/internal/datasource"
	"tablexform/internal/pipeline"
	"tablexform/internal/row"
	"tablexform/internal/storage"
	"tablexform/internal/transformer"
	"tablexform/internal/transformer/builtin"
)

var lotSchema = row.MustSchema(row.Column{Name: "LOT", Kind: row.KindText}, row.Column{Name: "N", Kind: row.KindInt})

func tableOf(lot string, n int64) *storage.Table {
	t := storage.NewTable()
	t.Schema = lotSchema
	t.Rows = []row.Row{{row.Text(lot), row.Int(n)}}
	return t
}

func TestRunBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	units := make([]Unit, 12)
	for i := range units {
		units[i] = Unit{Run: func(ctx context.Context) (*storage.Table, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return tableOf("x", 1), nil
		}}
	}

	res := (&Executor{Workers: 3}).Run(context.Background(), units)
	require.Len(t, res, 12)
	require.LessOrEqual(t, peak.Load(), int32(3))
	require.NoError(t, Errors(res))
	require.Equal(t, "unit[4]", res[4].Name)
}

func TestFailuresAreIndependent(t *testing.T) {
	boom := errors.New("connection refused")
	units := []Unit{
		{Name: "a", Run: func(context.Context) (*storage.Table, error) { return tableOf("A", 1), nil }},
		{Name: "b", Run: func(context.Context) (*storage.Table, error) { return nil, boom }},
		{Name: "c", Run: func(context.Context) (*storage.Table, error) { return tableOf("C", 3), nil }},
		{Name: "d", Run: func(context.Context) (*storage.Table, error) { panic("bad stage") }},
	}

	res := (&Executor{}).Run(context.Background(), units)

	require.NoError(t, res[0].Err)
	require.ErrorIs(t, res[1].Err, boom)
	require.NoError(t, res[2].Err)
	require.ErrorContains(t, res[3].Err, "panicked")

	err := Errors(res)
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "b: connection refused")

	master, err := Merge(res)
	require.NoError(t, err)
	require.Equal(t, 2, master.Len())
	require.Equal(t, "A", master.Rows[0][0].Canonical())
	require.Equal(t, "C", master.Rows[1][0].Canonical())
	require.True(t, master.Schema.Equal(lotSchema))
}

func TestCancelOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32
	units := []Unit{
		{Name: "fail", Run: func(context.Context) (*storage.Table, error) { return nil, boom }},
	}
	for i := 0; i < 5; i++ {
		units = append(units, Unit{Run: func(ctx context.Context) (*storage.Table, error) {
			ran.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		}})
	}

	res := (&Executor{Workers: 1, CancelOnError: true}).Run(context.Background(), units)

	require.ErrorIs(t, res[0].Err, boom)
	for _, r := range res[1:] {
		require.ErrorIs(t, r.Err, context.Canceled)
	}
	require.Zero(t, ran.Load(), "units queued behind the failure must not start")
}

func TestMergeKindMismatch(t *testing.T) {
	other := storage.NewTable()
	other.Schema = row.MustSchema(row.Column{Name: "lot", Kind: row.KindText}, row.Column{Name: "n", Kind: row.KindText})
	other.Rows = []row.Row{{row.Text("Z"), row.Text("x")}}

	_, err := Merge([]Result{
		{Name: "a", Table: tableOf("A", 1)},
		{Name: "z", Table: other},
	})
	var se *transformer.SchemaError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "N", se.Column)
	var ke *storage.ColumnKindError
	require.ErrorAs(t, err, &ke)
}

func rollupUnit(name string, rows ...row.Row) Unit {
	in := row.MustSchema(
		row.Column{Name: "LOT", Kind: row.KindText},
		row.Column{Name: "NAME", Kind: row.KindText},
		row.Column{Name: "VAL", Kind: row.KindInt},
	)
	return Unit{Name: name, Run: func(ctx context.Context) (*storage.Table, error) {
		stage, err := builtin.NewRollup(config.Options{"name_column": "NAME", "value_column": "VAL"})
		if err != nil {
			return nil, err
		}
		tbl := storage.NewTable()
		if _, err := pipeline.Run(ctx, datasource.NewSliceSource(in, rows), stage, tbl); err != nil {
			return nil, err
		}
		return tbl, nil
	}}
}

func TestMergeRollupsWithDifferentPivots(t *testing.T) {
	res := (&Executor{Workers: 2}).Run(context.Background(), []Unit{
		rollupUnit("north",
			row.Row{row.Text("A"), row.Text("T_GOOD"), row.Int(10)},
			row.Row{row.Text("A"), row.Text("T_BAD"), row.Int(2)},
		),
		rollupUnit("south",
			row.Row{row.Text("B"), row.Text("T_GOOD"), row.Int(5)},
			row.Row{row.Text("C"), row.Text("T_WORN"), row.Int(7)},
		),
	})
	require.NoError(t, Errors(res))

	master, err := Merge(res)
	require.NoError(t, err)
	require.Equal(t, []string{"LOT", "T_BAD", "T_GOOD", "T_WORN"}, master.Schema.Names())
	got := make([][]string, 0, master.Len())
	for _, r := range master.Rows {
		require.NoError(t, r.Conforms(master.Schema))
		got = append(got, r.Strings())
	}
	require.Equal(t, [][]string{
		{"A", "2", "10", "0"},
		{"B", "0", "5", "0"},
		{"C", "0", "0", "7"},
	}, got)
}

func TestMergeSkipsEmpty(t *testing.T) {
	master, err := Merge([]Result{{Name: "e", Table: storage.NewTable()}, {Name: "a", Table: tableOf("A", 1)}})
	require.NoError(t, err)
	require.Equal(t, 1, master.Len())
	require.Nil(t, Errors(nil))
}
