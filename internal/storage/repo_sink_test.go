package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tablexform/internal/row"
)

var sinkSchema = row.MustSchema(
	row.Column{Name: "LOT", Kind: row.KindText},
	row.Column{Name: "T_BAD", Kind: row.KindInt},
)

func TestRepositorySink_BatchesAndCreates(t *testing.T) {
	repo := &fakeRepo{}
	RegisterDDL("fake-sink", func(ctx context.Context, r Repository, table string, s row.Schema) error {
		return r.Exec(ctx, "CREATE "+table+" "+strings.Join(s.Names(), ","))
	})
	s := &RepositorySink{Repo: repo, Kind: "fake-sink", Table: "lots", AutoCreate: true, BatchSize: 2, Job: "t"}
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, sinkSchema))
	for i := int64(0); i < 5; i++ {
		require.NoError(t, s.Write(ctx, row.Row{row.Text("A"), row.Int(i)}))
	}
	require.NoError(t, s.Commit(ctx))

	require.Equal(t, []string{"CREATE lots LOT,T_BAD"}, repo.execs)
	require.Equal(t, []string{"LOT", "T_BAD"}, repo.columns)
	require.Len(t, repo.batches, 3)
	require.Equal(t, []any{"A", int64(4)}, repo.batches[2][0])
	require.Equal(t, int64(5), s.Written())

	require.Error(t, s.Write(ctx, row.Row{row.Text("late"), row.Int(0)}))
	require.Error(t, s.Commit(ctx))
}

func TestRepositorySink_CopyErrorSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	repo := &fakeRepo{failAt: 1, copyErr: boom}
	s := &RepositorySink{Repo: repo, Table: "lots", BatchSize: 1}
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, sinkSchema))
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = s.Write(ctx, row.Row{row.Text("A"), row.Int(1)})
	}
	if err == nil {
		err = s.Commit(ctx)
	}
	require.ErrorIs(t, err, boom)
	require.NoError(t, s.Abort(ctx))
}

func TestRepositorySink_MissingDDL(t *testing.T) {
	s := &RepositorySink{Repo: &fakeRepo{}, Kind: "nobody", Table: "x", AutoCreate: true}
	err := s.Begin(context.Background(), sinkSchema)
	require.ErrorContains(t, err, "no DDL bootstrapper")
}

func TestRepositorySink_AbortBeforeBegin(t *testing.T) {
	s := &RepositorySink{Repo: &fakeRepo{}}
	require.NoError(t, s.Abort(context.Background()))
	require.Error(t, s.Write(context.Background(), nil))
}
