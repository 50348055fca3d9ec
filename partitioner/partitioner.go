package partitioner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/danthegoodman1/icejoin/table"
)

type (
	// BucketPlan describes how rows are routed to buckets during a shuffle. Both sides of a join
	// must use an identical plan.
	BucketPlan struct {
		Func    string
		Keys    []string
		Buckets int
		// Divisions are the sorted inner boundaries used by the range function, len Buckets-1
		Divisions [][]any
	}

	// BucketFunc maps a row's key tuple to a bucket in [0, plan.Buckets).
	BucketFunc func(key []any, plan *BucketPlan) (int, error)
)

const (
	Hash  = "hash"
	Range = "range"
)

var (
	Functions = make(map[string]BucketFunc)

	ErrFuncNotFound = errors.New("partition function not found")

	ErrMissingColumns  = errors.New("missing one or more key columns")
	ErrInvalidBuckets  = errors.New("bucket count must be positive")
	ErrMissingDivision = errors.New("range partitioning needs Buckets-1 divisions")
)

func init() {
	RegisterFunctions()
}

func RegisterFunctions() {
	Functions[Hash] = func(key []any, plan *BucketPlan) (int, error) {
		buf, _ := table.EncodeKey(make([]byte, 0, 16*len(key)), key...)
		return int(xxhash.Sum64(buf) % uint64(plan.Buckets)), nil
	}
	Functions[Range] = func(key []any, plan *BucketPlan) (int, error) {
		if len(plan.Divisions) != plan.Buckets-1 {
			return 0, ErrMissingDivision
		}
		return sort.Search(len(plan.Divisions), func(i int) bool {
			return table.CompareRows(key, plan.Divisions[i]) < 0
		}), nil
	}
}

// GetRowBucket returns the bucket for row i of t.
func GetRowBucket(t *table.Table, i int, plan *BucketPlan) (int, error) {
	f, ok := Functions[plan.Func]
	if !ok {
		return 0, ErrFuncNotFound
	}
	cols, err := keyColumns(t, plan.Keys)
	if err != nil {
		return 0, err
	}
	return f(rowKey(cols, i, nil), plan)
}

// BucketTable splits t into plan.Buckets tables. Row order within a bucket follows t.
func BucketTable(t *table.Table, plan *BucketPlan) ([]*table.Table, error) {
	if plan.Buckets <= 0 {
		return nil, ErrInvalidBuckets
	}
	f, ok := Functions[plan.Func]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFuncNotFound, plan.Func)
	}
	cols, err := keyColumns(t, plan.Keys)
	if err != nil {
		return nil, err
	}

	rows := make([][]int, plan.Buckets)
	key := make([]any, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		b, err := f(rowKey(cols, i, key), plan)
		if err != nil {
			return nil, fmt.Errorf("error processing partition function %s: %w", plan.Func, err)
		}
		rows[b] = append(rows[b], i)
	}

	out := make([]*table.Table, plan.Buckets)
	for b := range out {
		out[b] = t.Take(rows[b])
	}
	return out, nil
}

// ComputeDivisions picks buckets-1 boundaries at evenly spaced quantiles of the key tuples found
// in the given tables, so that range buckets receive similar row counts.
func ComputeDivisions(keys []string, buckets int, tables ...*table.Table) ([][]any, error) {
	if buckets <= 0 {
		return nil, ErrInvalidBuckets
	}
	var sample [][]any
	for _, t := range tables {
		cols, err := keyColumns(t, keys)
		if err != nil {
			return nil, err
		}
		for i := 0; i < t.NumRows(); i++ {
			sample = append(sample, rowKey(cols, i, nil))
		}
	}
	sort.Slice(sample, func(i, j int) bool {
		return table.CompareRows(sample[i], sample[j]) < 0
	})

	divisions := make([][]any, 0, buckets-1)
	for b := 1; b < buckets; b++ {
		if len(sample) == 0 {
			divisions = append(divisions, make([]any, len(keys)))
			continue
		}
		divisions = append(divisions, sample[b*len(sample)/buckets])
	}
	return divisions, nil
}

func keyColumns(t *table.Table, keys []string) ([]*table.Column, error) {
	cols := make([]*table.Column, len(keys))
	for i, k := range keys {
		if cols[i] = t.Column(k); cols[i] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumns, k)
		}
	}
	return cols, nil
}

func rowKey(cols []*table.Column, i int, into []any) []any {
	if into == nil {
		into = make([]any, len(cols))
	}
	for j, c := range cols {
		into[j] = c.Values[i]
	}
	return into
}
