package partition

import (
	"testing"

	"github.com/danthegoodman1/icejoin/table"
)

func seq(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

func TestFromTable(t *testing.T) {
	tbl := table.MustNew(table.Ints("x", seq(10)...))

	pt, err := FromTable(tbl, 3)
	if err != nil {
		t.Fatal(err)
	}
	if pt.NumPartitions() != 4 {
		t.Fatalf("expected 4 partitions, got %d", pt.NumPartitions())
	}
	if pt.Partitions[3].NumRows() != 1 {
		t.Fatalf("expected a 1 row tail, got %d", pt.Partitions[3].NumRows())
	}
	if pt.NumRows() != 10 {
		t.Fatalf("expected 10 rows, got %d", pt.NumRows())
	}

	back, err := pt.Compute()
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Equivalent(tbl, back, table.CheckOrder()); err != nil {
		t.Fatal(err)
	}

	if _, err := FromTable(tbl, 0); err != ErrInvalidChunkSize {
		t.Fatal("expected ErrInvalidChunkSize")
	}
}

func TestFromTableEmpty(t *testing.T) {
	tbl := table.Empty([]table.Field{{Name: "x", Type: table.Int}})
	pt, err := FromTable(tbl, 50)
	if err != nil {
		t.Fatal(err)
	}
	if pt.NumPartitions() != 1 || pt.NumRows() != 0 {
		t.Fatalf("expected one empty partition, got %d partitions with %d rows", pt.NumPartitions(), pt.NumRows())
	}
}

func TestRepartitionKeepsRows(t *testing.T) {
	tbl := table.MustNew(table.Ints("x", seq(7)...), table.Floats("a", 0, 1, 2, 3, 4, 5, 6))
	pt, err := FromTable(tbl, 7)
	if err != nil {
		t.Fatal(err)
	}
	re, err := pt.Repartition(3)
	if err != nil {
		t.Fatal(err)
	}
	if re.NumPartitions() != 3 {
		t.Fatalf("expected 3 partitions, got %d", re.NumPartitions())
	}
	back, err := re.Compute()
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Equivalent(tbl, back, table.CheckOrder()); err != nil {
		t.Fatal(err)
	}
}

func TestSetIndex(t *testing.T) {
	tbl := table.MustNew(table.Ints("a", seq(4)...), table.Ints("x", 3, 2, 1, 0))
	pt, _ := FromTable(tbl, 2)
	ipt, err := pt.SetIndex("x")
	if err != nil {
		t.Fatal(err)
	}
	if ipt.Index[0] != "x" || ipt.Partitions[1].Index[0] != "x" {
		t.Fatal("index not propagated")
	}
	if ipt.ColumnNames()[0] != "x" {
		t.Fatal("index column not first")
	}
	if ipt.ResetIndex().Index != nil {
		t.Fatal("index not reset")
	}
}

func TestNewRejectsMixedSchemas(t *testing.T) {
	_, err := New(table.MustNew(table.Ints("x", 1)), table.MustNew(table.Ints("y", 1)))
	if err == nil {
		t.Fatal("expected schema mismatch")
	}
}
