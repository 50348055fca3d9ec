package partitioner

import (
	"testing"

	"github.com/danthegoodman1/icejoin/table"
)

func TestHashColocatesEqualKeys(t *testing.T) {
	left := table.MustNew(table.Ints("x", 0, 1, 2, 3, 4, 5, 6, 7))
	right := table.MustNew(table.Floats("x", 7, 6, 5, 4, 3, 2, 1, 0))

	plan := &BucketPlan{Func: Hash, Keys: []string{"x"}, Buckets: 3}
	for i := 0; i < left.NumRows(); i++ {
		lb, err := GetRowBucket(left, i, plan)
		if err != nil {
			t.Fatal(err)
		}
		rb, err := GetRowBucket(right, left.NumRows()-1-i, plan)
		if err != nil {
			t.Fatal(err)
		}
		if lb != rb {
			t.Fatalf("key %d landed in bucket %d on the left and %d on the right", i, lb, rb)
		}
	}
}

func TestBucketTableKeepsEveryRow(t *testing.T) {
	tbl := table.MustNew(table.Ints("x", 3, 1, 4, 1, 5, 9, 2, 6), table.Ints("a", 0, 1, 2, 3, 4, 5, 6, 7))
	for _, fn := range []string{Hash, Range} {
		plan := &BucketPlan{Func: fn, Keys: []string{"x"}, Buckets: 4}
		if fn == Range {
			div, err := ComputeDivisions(plan.Keys, plan.Buckets, tbl)
			if err != nil {
				t.Fatal(err)
			}
			plan.Divisions = div
		}
		buckets, err := BucketTable(tbl, plan)
		if err != nil {
			t.Fatal(err)
		}
		if len(buckets) != 4 {
			t.Fatalf("%s: expected 4 buckets, got %d", fn, len(buckets))
		}
		back, err := table.Concat(buckets...)
		if err != nil {
			t.Fatal(err)
		}
		if err := table.Equivalent(tbl, back); err != nil {
			t.Fatalf("%s: %s", fn, err)
		}
	}
}

func TestRangeBucketsAreOrdered(t *testing.T) {
	tbl := table.MustNew(table.Ints("x", 8, 7, 6, 5, 4, 3, 2, 1))
	div, err := ComputeDivisions([]string{"x"}, 4, tbl)
	if err != nil {
		t.Fatal(err)
	}
	buckets, err := BucketTable(tbl, &BucketPlan{Func: Range, Keys: []string{"x"}, Buckets: 4, Divisions: div})
	if err != nil {
		t.Fatal(err)
	}
	var last int64 = -1
	for b, bt := range buckets {
		if bt.NumRows() != 2 {
			t.Fatalf("expected 2 rows in bucket %d, got %d", b, bt.NumRows())
		}
		sorted, _ := bt.SortBy("x")
		first := sorted.Column("x").Values[0].(int64)
		if first <= last {
			t.Fatalf("bucket %d starts at %d, previous ended at %d", b, first, last)
		}
		last = sorted.Column("x").Values[1].(int64)
	}
}

func TestErrors(t *testing.T) {
	tbl := table.MustNew(table.Ints("x", 1))
	if _, err := BucketTable(tbl, &BucketPlan{Func: "nope", Keys: []string{"x"}, Buckets: 1}); err == nil {
		t.Fatal("expected ErrFuncNotFound")
	}
	if _, err := BucketTable(tbl, &BucketPlan{Func: Hash, Keys: []string{"y"}, Buckets: 1}); err == nil {
		t.Fatal("expected ErrMissingColumns")
	}
	if _, err := BucketTable(tbl, &BucketPlan{Func: Hash, Keys: []string{"x"}, Buckets: 0}); err != ErrInvalidBuckets {
		t.Fatal("expected ErrInvalidBuckets")
	}
	if _, err := BucketTable(tbl, &BucketPlan{Func: Range, Keys: []string{"x"}, Buckets: 2}); err == nil {
		t.Fatal("expected ErrMissingDivision")
	}
}
