package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

// drive runs s over rows the way the pipeline driver does and returns the
// final schema together with every emitted row.
func drive(t *testing.T, s transformer.Stage, in row.Schema, rows ...row.Row) (row.Schema, []row.Row) {
	t.Helper()
	out, streaming, err := s.Initialize(in)
	require.NoError(t, err)

	var emitted []row.Row
	for _, r := range rows {
		got, err := s.ConsumeRow(r)
		require.NoError(t, err)
		if !streaming {
			require.Empty(t, got, "buffering stage emitted from ConsumeRow")
		}
		emitted = append(emitted, got...)
	}
	final, err := s.PreFinalize()
	require.NoError(t, err)
	if streaming {
		require.True(t, out.Equal(final), "streaming stage changed schema")
	}
	tail, err := s.Finalize()
	require.NoError(t, err)
	emitted = append(emitted, tail...)

	for i, r := range emitted {
		require.NoError(t, r.Conforms(final), "row %d", i)
	}
	return final, emitted
}

func text(s string) row.Value { return row.Text(s) }
func num(n int64) row.Value   { return row.Int(n) }

func strs(rows []row.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Strings()
	}
	return out
}
