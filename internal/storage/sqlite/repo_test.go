package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tablexform/internal/row"
	"tablexform/internal/storage"
)

var lotSchema = row.MustSchema(
	row.Column{Name: "LOT", Kind: row.KindText},
	row.Column{Name: "T_BAD", Kind: row.KindInt},
	row.Column{Name: "ratio", Kind: row.KindDecimal},
	row.Column{Name: "seen", Kind: row.KindTime},
	row.Column{Name: "ok", Kind: row.KindBool},
)

func TestRepositorySinkEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:", Table: "main.lot rollup"})
	require.NoError(t, err)
	defer repo.Close()

	sink := &storage.RepositorySink{Repo: repo, Kind: "sqlite", Table: "main.lot rollup", AutoCreate: true, BatchSize: 2}
	seen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []row.Row{
		{row.Text("A"), row.Int(2), row.Decimal(decimal.RequireFromString("1.25")), row.Time(seen), row.Bool(true)},
		{row.Text("B"), row.Int(0), row.Null(), row.Null(), row.Bool(false)},
		{row.Text(`C "quoted"`), row.Int(7), row.Decimal(decimal.NewFromInt(3)), row.Time(seen), row.Bool(true)},
	}
	require.NoError(t, sink.Begin(ctx, lotSchema))
	for _, r := range rows {
		require.NoError(t, sink.Write(ctx, r))
	}
	require.NoError(t, sink.Commit(ctx))
	require.Equal(t, int64(3), sink.Written())

	db := repo.(*wrappedRepo).DB()
	var n, bad int64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*), sum("T_BAD") FROM "lot rollup"`).Scan(&n, &bad))
	require.Equal(t, int64(3), n)
	require.Equal(t, int64(9), bad)

	var lot string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "LOT" FROM "lot rollup" WHERE "ok" = 0`).Scan(&lot))
	require.Equal(t, "B", lot)

	// Creating the table again is a no-op.
	require.NoError(t, storage.EnsureTable(ctx, "sqlite", repo, "main.lot rollup", lotSchema))
}

func TestCopyFromValidation(t *testing.T) {
	ctx := context.Background()
	r, closeFn, err := NewRepository(ctx, Config{DSN: ":memory:", Table: "t"})
	require.NoError(t, err)
	defer closeFn()
	require.NoError(t, r.Exec(ctx, `CREATE TABLE t (a INTEGER, b TEXT)`))

	_, err = r.CopyFrom(ctx, nil, [][]any{{1}})
	require.ErrorContains(t, err, "columns must not be empty")

	n, err := r.CopyFrom(ctx, []string{"a", "b"}, nil)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = r.CopyFrom(ctx, []string{"a", "b"}, [][]any{{1, "x"}, {2}})
	require.ErrorContains(t, err, "row 1 has 1 values")

	var count int
	require.NoError(t, r.DB().QueryRowContext(ctx, `SELECT count(*) FROM t`).Scan(&count))
	require.Zero(t, count, "failed batch must roll back")

	require.NoError(t, r.Exec(ctx, "  "))
	_, _, err = NewRepository(ctx, Config{})
	require.ErrorContains(t, err, "DSN must not be empty")
}

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "x.db", Table: "events"})
	require.NoError(t, err)
	require.Equal(t, Config{DSN: "x.db", Table: "events"}, got)
	repo.Close()
	require.True(t, closed)
}

func TestDialect(t *testing.T) {
	require.Equal(t, "INTEGER", mapKind(row.KindBool))
	require.Equal(t, "NUMERIC", mapKind(row.KindDecimal))
	require.Equal(t, "TEXT", mapKind(row.KindTime))
	require.Equal(t, "REAL", mapKind(row.KindFloat))
}
