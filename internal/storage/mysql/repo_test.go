package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"tablexform/internal/ddl"
	"tablexform/internal/row"
	"tablexform/internal/storage"
)

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u:p@tcp(db:3306)/x", Table: "x.lots"})
	require.NoError(t, err)
	require.Equal(t, Config{DSN: "u:p@tcp(db:3306)/x", Table: "x.lots"}, got)
	repo.Close()
	require.True(t, closed)
}

func TestNewRepository_BadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "no-slash-here"})
	require.Error(t, err)
}

func TestBuildInsert(t *testing.T) {
	stmt, args := buildInsert("x.lots", []string{"LOT", "T`BAD"}, [][]any{{"A", 2}, {"B", nil}})
	require.Equal(t, "INSERT INTO `x`.`lots` (`LOT`, `T``BAD`) VALUES (?, ?), (?, ?)", stmt)
	require.Equal(t, []any{"A", 2, "B", nil}, args)
}

func TestChunkRows(t *testing.T) {
	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	chunks := chunkRows(rows, 2)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[2], 1)
	require.Len(t, chunkRows(rows, 10), 1)
	require.Len(t, chunkRows(rows, 0), 5)
}

func TestMySQLErrorCarriesNumber(t *testing.T) {
	base := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	err := mysqlError(base)
	require.ErrorContains(t, err, "error 1062")
	require.True(t, errors.Is(err, base))
}

func TestDialectDDL(t *testing.T) {
	s := row.MustSchema(row.Column{Name: "LOT", Kind: row.KindText}, row.Column{Name: "at", Kind: row.KindTime})
	got, err := ddl.BuildCreateTableSQL(ddl.FromSchema("lots", s, Dialect), Dialect)
	require.NoError(t, err)
	require.Equal(t, "CREATE TABLE IF NOT EXISTS `lots` (\n  `LOT` LONGTEXT,\n  `at` DATETIME(6)\n);", got)
}
