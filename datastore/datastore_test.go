package datastore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/danthegoodman1/icejoin/parquet_accumulator"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
)

func roundTrip(t *testing.T, ds DataStore) {
	ctx := context.Background()
	tbl := table.MustNew(table.Ints("x", 1, 2, 3), table.Strings("s", "a", "b", "c"))
	b, err := parquet_accumulator.EncodeTable(tbl)
	if err != nil {
		t.Fatal(err)
	}

	key := "ds=test/" + utils.GenKSortedID("") + ".parquet"
	if err = ds.Put(ctx, key, bytes.NewReader(b)); err != nil {
		t.Fatal(err)
	}
	f, err := ds.Open(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	back, err := parquet_accumulator.ReadTable(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if err = table.Equivalent(tbl, back, table.CheckOrder()); err != nil {
		t.Fatal(err)
	}

	if err = ds.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, err = ds.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound after delete, got", err)
	}
}

func TestDiskDataStore(t *testing.T) {
	ds, err := NewDiskDataStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	roundTrip(t, ds)

	// deleting a missing key is not an error
	if err = ds.Delete(context.Background(), "ds=nope/a.parquet"); err != nil {
		t.Fatal(err)
	}
}

func TestS3DataStore(t *testing.T) {
	if utils.S3_BUCKET_NAME == "" {
		t.Skip("S3_BUCKET_NAME not set")
	}
	ds, err := NewS3DataStore(utils.S3_BUCKET_NAME)
	if err != nil {
		t.Fatal(err)
	}
	roundTrip(t, ds)
}

func TestNewS3DataStoreNeedsBucket(t *testing.T) {
	if _, err := NewS3DataStore(""); err != ErrNoBucket {
		t.Fatal("expected ErrNoBucket, got", err)
	}
}
