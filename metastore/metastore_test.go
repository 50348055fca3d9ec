package metastore

import (
	"context"
	"errors"
	"testing"

	"github.com/danthegoodman1/icejoin/crdb"
	"github.com/danthegoodman1/icejoin/migrations"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
)

func exerciseMetaStore(t *testing.T, ms MetaStore) {
	ctx := context.Background()
	name := "test_" + utils.GenRandomShortID()

	if _, err := ms.GetDataset(ctx, name); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatal("expected ErrDatasetNotFound, got", err)
	}

	ds := Dataset{
		ID:      utils.GenRandomID("ds_"),
		Name:    name,
		Columns: []table.Field{{Name: "x", Type: table.Int}, {Name: "a", Type: table.Float}},
		Index:   []string{"x"},
	}
	parts := []PartitionFile{
		{Num: 1, Key: "ds=" + name + "/b.parquet", Rows: 5, Bytes: 100},
		{Num: 0, Key: "ds=" + name + "/a.parquet", Rows: 3, Bytes: 90},
	}
	replaced, err := ms.PutDataset(ctx, ds, parts)
	if err != nil {
		t.Fatal(err)
	}
	if len(replaced) != 0 {
		t.Fatal("nothing should be replaced on create", replaced)
	}

	got, err := ms.GetDataset(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != ds.ID || len(got.Columns) != 2 || got.Columns[1].Type != table.Float || len(got.Index) != 1 {
		t.Fatalf("bad dataset %+v", got)
	}

	listed, err := ms.ListPartitions(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 || listed[0].Num != 0 || listed[1].Num != 1 || NumRows(listed) != 8 {
		t.Fatalf("bad partitions %+v", listed)
	}

	ds.ID = utils.GenRandomID("ds_")
	replaced, err = ms.PutDataset(ctx, ds, parts[:1])
	if err != nil {
		t.Fatal(err)
	}
	if len(replaced) != 2 {
		t.Fatal("expected the 2 old partitions back, got", replaced)
	}

	all, err := ms.ListDatasets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, d := range all {
		found = found || d.Name == name
	}
	if !found {
		t.Fatal("dataset missing from ListDatasets")
	}

	deleted, err := ms.DeleteDataset(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 1 {
		t.Fatal("expected 1 deleted partition, got", deleted)
	}
	if _, err = ms.ListPartitions(ctx, name); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatal("expected ErrDatasetNotFound after delete, got", err)
	}
}

func TestMemoryMetaStore(t *testing.T) {
	exerciseMetaStore(t, NewMemoryMetaStore())
}

func TestCRDBMetaStore(t *testing.T) {
	if utils.CRDB_DSN == "" {
		t.Skip("CRDB_DSN not set")
	}
	if _, err := migrations.RunMigrations(utils.CRDB_DSN); err != nil {
		t.Fatal(err)
	}
	if err := crdb.ConnectToDB(); err != nil {
		t.Fatal(err)
	}
	ms := NewCRDBMetaStore(crdb.PGPool)
	defer ms.Shutdown(context.Background())
	exerciseMetaStore(t, ms)
}
