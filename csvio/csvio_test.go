package csvio

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danthegoodman1/icejoin/partition"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeseries mimics a small random frame of int columns x and y.
func timeseries(t *testing.T, rows, chunksize int) *partition.Table {
	t.Helper()
	r := rand.New(rand.NewSource(0))
	x := make([]int64, rows)
	y := make([]int64, rows)
	for i := range x {
		x[i] = int64(r.Intn(2000) - 1000)
		y[i] = int64(r.Intn(2000) - 1000)
	}
	pt, err := partition.FromTable(table.MustNew(table.Ints("x", x...), table.Ints("y", y...)), chunksize)
	require.NoError(t, err)
	return pt
}

func TestReadCSV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	df := timeseries(t, 1500, 300)

	paths, err := WriteCSV(ctx, df, dir, "data-*.csv")
	require.NoError(t, err)
	assert.Len(t, paths, 5)

	df2, err := ReadCSV(ctx, filepath.Join(dir, "*.csv"), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, df.NumPartitions(), df2.NumPartitions())

	expect, err := df.Compute()
	require.NoError(t, err)
	got, err := df2.Compute()
	require.NoError(t, err)
	require.NoError(t, table.Equivalent(expect, got, table.CheckOrder()))
}

func TestReadCSVWithBytes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	df := timeseries(t, 1500, 300)
	_, err := WriteCSV(ctx, df, dir, "data-*.csv")
	require.NoError(t, err)

	df2, err := ReadCSV(ctx, filepath.Join(dir, "*.csv"), ReadOptions{ChunkSize: "1 kiB"})
	require.NoError(t, err)
	assert.Greater(t, df2.NumPartitions(), df.NumPartitions())

	expect, _ := df.Compute()
	got, err := df2.Compute()
	require.NoError(t, err)
	require.NoError(t, table.Equivalent(expect, got, table.CheckOrder()))
}

func TestReadCSVInfersTypesAndNulls(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("i,f,s\n1,1.5,a\n,2,\n3,,c\n"), 0o644))
	pt, err := ReadCSV(context.Background(), filepath.Join(dir, "*.csv"), ReadOptions{})
	require.NoError(t, err)
	got, err := pt.Compute()
	require.NoError(t, err)

	expect := table.MustNew(
		&table.Column{Name: "i", Type: table.Int, Values: []any{int64(1), nil, int64(3)}},
		&table.Column{Name: "f", Type: table.Float, Values: []any{1.5, 2.0, nil}},
		&table.Column{Name: "s", Type: table.String, Values: []any{"a", nil, "c"}},
	)
	require.NoError(t, table.Equivalent(expect, got, table.CheckOrder()))
}

func TestFloatsSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pt, err := partition.FromTable(table.MustNew(table.Ints("x", 1, 2), table.Floats("a", 1, 2000)), 1)
	require.NoError(t, err)
	_, err = WriteCSV(ctx, pt, dir, "part-*.csv")
	require.NoError(t, err)

	back, err := ReadCSV(ctx, filepath.Join(dir, "part-*.csv"), ReadOptions{})
	require.NoError(t, err)
	got, _ := back.Compute()
	expect, _ := pt.Compute()
	require.NoError(t, table.Equivalent(expect, got, table.CheckOrder()))
}

func TestQuotedNewlinesAnyChunkSize(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("x,s\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("1,\"line one is longer\nb\"\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.csv"), []byte(sb.String()), 0o644))

	whole, err := ReadCSV(ctx, filepath.Join(dir, "q.csv"), ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, whole.NumPartitions())
	expect, err := whole.Compute()
	require.NoError(t, err)
	require.Equal(t, 200, expect.NumRows())
	assert.Equal(t, "line one is longer\nb", expect.Column("s").Values[0])

	for _, chunk := range []string{"64B", "1000B", "1010B", "1100B", "1 kiB"} {
		pt, err := ReadCSV(ctx, filepath.Join(dir, "q.csv"), ReadOptions{ChunkSize: chunk})
		require.NoError(t, err, chunk)
		assert.Greater(t, pt.NumPartitions(), 1, chunk)
		got, err := pt.Compute()
		require.NoError(t, err, chunk)
		require.NoError(t, table.Equivalent(expect, got, table.CheckOrder()), chunk)
	}
}

func TestReadCSVErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := ReadCSV(ctx, filepath.Join(dir, "*.csv"), ReadOptions{})
	require.True(t, errors.Is(err, ErrNoFiles))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x,y\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("x,z\n1,2\n"), 0o644))
	_, err = ReadCSV(ctx, filepath.Join(dir, "*.csv"), ReadOptions{})
	require.True(t, errors.Is(err, ErrHeaderMismatch))

	_, err = ReadCSV(ctx, filepath.Join(dir, "a.csv"), ReadOptions{ChunkSize: "lots"})
	require.Error(t, err)

	_, err = WriteCSV(ctx, timeseries(t, 2, 1), dir, "nostar.csv")
	require.ErrorIs(t, err, ErrBadPattern)
}
