package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danthegoodman1/icejoin/datastore"
	"github.com/danthegoodman1/icejoin/join"
	"github.com/danthegoodman1/icejoin/metastore"
	"github.com/danthegoodman1/icejoin/partition"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	dir := t.TempDir()
	ds, err := datastore.NewDiskDataStore(dir)
	require.NoError(t, err)
	return NewStore(ds, metastore.NewMemoryMetaStore()), dir
}

func countFiles(t *testing.T, dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "ds=*", "*.parquet"))
	require.NoError(t, err)
	return len(matches)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	src := table.MustNew(
		table.Ints("x", 3, 1, 2, 5, 4),
		&table.Column{Name: "a", Type: table.Float, Values: []any{1.5, nil, 2.5, 3.0, 4.0}},
		table.Strings("s", "c", "a", "b", "e", "d"),
	)
	pt, err := partition.FromTable(src, 2)
	require.NoError(t, err)

	ds, err := s.Save(ctx, "orders", pt)
	require.NoError(t, err)
	assert.Equal(t, "orders", ds.Name)
	assert.Equal(t, 3, countFiles(t, dir))

	back, err := s.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 3, back.NumPartitions())
	got, err := back.Compute()
	require.NoError(t, err)
	require.NoError(t, table.Equivalent(src, got, table.CheckOrder()))

	// inputs are untouched and indexes survive
	indexed, err := pt.SetIndex("x")
	require.NoError(t, err)
	_, err = s.Save(ctx, "orders", indexed)
	require.NoError(t, err)
	assert.Nil(t, pt.Index)
	assert.Equal(t, 3, countFiles(t, dir), "replaced files are removed")

	back, err = s.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, back.Index)
}

func TestSavedDatasetsJoin(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	left, err := partition.FromTable(table.MustNew(table.Ints("x", 0, 1), table.Ints("a", 0, 1)), 1)
	require.NoError(t, err)
	right, err := partition.FromTable(table.MustNew(table.Ints("x", 0, 0), table.Ints("a", 10, 11)), 1)
	require.NoError(t, err)
	_, err = s.Save(ctx, "left", left)
	require.NoError(t, err)
	_, err = s.Save(ctx, "right", right)
	require.NoError(t, err)

	l, err := s.Load(ctx, "left")
	require.NoError(t, err)
	r, err := s.Load(ctx, "right")
	require.NoError(t, err)
	res, err := join.Merge(ctx, l, r, join.Options{On: []string{"x"}, How: join.Left})
	require.NoError(t, err)
	got, err := res.Compute()
	require.NoError(t, err)

	expect := table.MustNew(
		table.Ints("x", 0, 0, 1),
		table.Ints("a_x", 0, 0, 1),
		&table.Column{Name: "a_y", Type: table.Int, Values: []any{int64(10), int64(11), nil}},
	)
	require.NoError(t, table.Equivalent(expect, got))
}

func TestEmptyDataset(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	pt, err := partition.FromTable(table.Empty([]table.Field{{Name: "x", Type: table.Int}}), 10)
	require.NoError(t, err)
	_, err = s.Save(ctx, "empty", pt)
	require.NoError(t, err)

	back, err := s.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, back.NumRows())
	assert.Equal(t, []string{"x"}, back.ColumnNames())
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	_, err := s.Load(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(s.Delete(ctx, "missing")))

	pt, err := partition.FromTable(table.MustNew(table.Ints("x", 1)), 1)
	require.NoError(t, err)
	_, err = s.Save(ctx, "../escape", pt)
	assert.True(t, errors.Is(err, ErrInvalidName))

	_, err = s.Save(ctx, "gone", pt)
	require.NoError(t, err)
	files, _ := filepath.Glob(filepath.Join(dir, "ds=gone", "*.parquet"))
	require.Len(t, files, 1)
	require.NoError(t, os.Remove(files[0]))
	_, err = s.Load(ctx, "gone")
	assert.True(t, IsNotFound(err))

	require.NoError(t, s.Delete(ctx, "gone"))
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
