package partition

import (
	"errors"
	"fmt"

	"github.com/danthegoodman1/icejoin/table"
)

type (
	// Table is a logical table split into row-disjoint partitions. Concatenating the partitions
	// in order reconstructs the table.
	Table struct {
		Partitions []*table.Table
		// Index mirrors the index of every partition
		Index []string
	}

	// Meta describes one partition without its rows.
	Meta struct {
		Num      int
		RowCount int64
	}
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrNoPartitions     = errors.New("partitioned table has no partitions")
)

// New wraps existing partitions, checking that they share one schema.
func New(parts ...*table.Table) (*Table, error) {
	if len(parts) == 0 {
		return nil, ErrNoPartitions
	}
	names := fmt.Sprint(parts[0].ColumnNames())
	for i, p := range parts[1:] {
		if fmt.Sprint(p.ColumnNames()) != names {
			return nil, fmt.Errorf("%w: partition %d has columns %v, expected %s", table.ErrSchemaMismatch, i+1, p.ColumnNames(), names)
		}
	}
	return &Table{Partitions: parts, Index: parts[0].Index}, nil
}

// FromTable splits t into consecutive partitions of at most chunksize rows. An empty table
// yields a single empty partition.
func FromTable(t *table.Table, chunksize int) (*Table, error) {
	if chunksize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	n := t.NumRows()
	if n == 0 {
		return &Table{Partitions: []*table.Table{t}, Index: t.Index}, nil
	}
	pt := &Table{Index: t.Index}
	for start := 0; start < n; start += chunksize {
		end := start + chunksize
		if end > n {
			end = n
		}
		pt.Partitions = append(pt.Partitions, t.Slice(start, end))
	}
	return pt, nil
}

// FromTableN splits t into n partitions whose sizes differ by at most one row. Fewer than n
// rows yield one partition per row.
func FromTableN(t *table.Table, n int) (*Table, error) {
	if n <= 0 {
		return nil, ErrInvalidChunkSize
	}
	rows := t.NumRows()
	if rows < n {
		if rows == 0 {
			return FromTable(t, 1)
		}
		n = rows
	}
	pt := &Table{Index: t.Index}
	base, extra := rows/n, rows%n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		pt.Partitions = append(pt.Partitions, t.Slice(start, start+size))
		start += size
	}
	return pt, nil
}

func (pt *Table) NumPartitions() int {
	return len(pt.Partitions)
}

func (pt *Table) NumRows() int {
	n := 0
	for _, p := range pt.Partitions {
		n += p.NumRows()
	}
	return n
}

func (pt *Table) Schema() []table.Field {
	if len(pt.Partitions) == 0 {
		return nil
	}
	return pt.Partitions[0].Schema()
}

func (pt *Table) ColumnNames() []string {
	if len(pt.Partitions) == 0 {
		return nil
	}
	return pt.Partitions[0].ColumnNames()
}

func (pt *Table) HasColumn(name string) bool {
	return len(pt.Partitions) > 0 && pt.Partitions[0].HasColumn(name)
}

func (pt *Table) Metas() []Meta {
	metas := make([]Meta, len(pt.Partitions))
	for i, p := range pt.Partitions {
		metas[i] = Meta{Num: i, RowCount: int64(p.NumRows())}
	}
	return metas
}

// Compute concatenates all partitions into one table.
func (pt *Table) Compute() (*table.Table, error) {
	if len(pt.Partitions) == 0 {
		return nil, ErrNoPartitions
	}
	t, err := table.Concat(pt.Partitions...)
	if err != nil {
		return nil, fmt.Errorf("error in table.Concat: %w", err)
	}
	t.Index = pt.Index
	return t, nil
}

// Repartition rebalances rows into n partitions, keeping row order.
func (pt *Table) Repartition(n int) (*Table, error) {
	t, err := pt.Compute()
	if err != nil {
		return nil, err
	}
	return FromTableN(t, n)
}

// SetIndex promotes columns to the index in every partition.
func (pt *Table) SetIndex(names ...string) (*Table, error) {
	out := &Table{Partitions: make([]*table.Table, len(pt.Partitions)), Index: names}
	for i, p := range pt.Partitions {
		ip, err := p.SetIndex(names...)
		if err != nil {
			return nil, fmt.Errorf("error in partition %d: %w", i, err)
		}
		out.Partitions[i] = ip
	}
	return out, nil
}

func (pt *Table) ResetIndex() *Table {
	out := &Table{Partitions: make([]*table.Table, len(pt.Partitions))}
	for i, p := range pt.Partitions {
		out.Partitions[i] = p.ResetIndex()
	}
	return out
}
