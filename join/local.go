package join

import (
	"fmt"

	"github.com/danthegoodman1/icejoin/table"
)

// LocalJoin joins two unpartitioned tables. It is both the per-bucket kernel of the engine and
// the reference the engine's results are defined against.
//
// Rows come out in the preserved side's order (left for inner and left joins, right for right
// joins), each followed by its matches in the other side's order. Null keys never match.
func LocalJoin(left, right *table.Table, spec Spec) (*table.Table, error) {
	cols, err := layout(left.Schema(), right.Schema(), spec)
	if err != nil {
		return nil, err
	}

	preserved, other := left, right
	if spec.How == Right {
		preserved, other = right, left
	}
	pKeys, err := keyColumns(preserved, spec.Keys)
	if err != nil {
		return nil, err
	}
	oKeys, err := keyColumns(other, spec.Keys)
	if err != nil {
		return nil, err
	}

	// build on the other side, probe with the preserved side
	index := make(map[string][]int, other.NumRows())
	var buf []byte
	for i := 0; i < other.NumRows(); i++ {
		key, ok := encodeRow(buf[:0], oKeys, i)
		buf = key
		if !ok {
			continue
		}
		index[string(key)] = append(index[string(key)], i)
	}

	outer := spec.How != Inner
	var pRows, oRows []int
	for i := 0; i < preserved.NumRows(); i++ {
		key, ok := encodeRow(buf[:0], pKeys, i)
		buf = key
		var matches []int
		if ok {
			matches = index[string(key)]
		}
		for _, m := range matches {
			pRows = append(pRows, i)
			oRows = append(oRows, m)
		}
		if len(matches) == 0 && outer {
			pRows = append(pRows, i)
			oRows = append(oRows, -1)
		}
	}

	leftRows, rightRows := pRows, oRows
	if spec.How == Right {
		leftRows, rightRows = oRows, pRows
	}

	out := &table.Table{Columns: make([]*table.Column, len(cols))}
	for j, c := range cols {
		var src *table.Column
		rows := rightRows
		switch {
		case c.key:
			src, rows = preserved.Column(c.name), pRows
		case c.left:
			src, rows = left.Columns[c.src], leftRows
		default:
			src = right.Columns[c.src]
		}
		vals := make([]any, len(rows))
		for i, r := range rows {
			if r >= 0 {
				vals[i] = src.Values[r]
			}
		}
		col, err := table.NewColumn(c.name, c.typ, vals...)
		if err != nil {
			return nil, fmt.Errorf("error building output column %s: %w", c.name, err)
		}
		out.Columns[j] = col
	}
	if spec.Indexed {
		out.Index = spec.Keys
	}

	if spec.Sort {
		return out.SortBy(spec.Keys...)
	}
	return out, nil
}

// JoinTables is the single-machine index join: keys default to the inputs' index.
func JoinTables(left, right *table.Table, opts Options) (*table.Table, error) {
	spec, err := Resolve(left.Schema(), right.Schema(), left.Index, right.Index, opts, true)
	if err != nil {
		return nil, err
	}
	return LocalJoin(left, right, spec)
}

// MergeTables is the single-machine merge: keys are ordinary columns.
func MergeTables(left, right *table.Table, opts Options) (*table.Table, error) {
	spec, err := Resolve(left.Schema(), right.Schema(), left.Index, right.Index, opts, false)
	if err != nil {
		return nil, err
	}
	return LocalJoin(left, right, spec)
}

func keyColumns(t *table.Table, keys []string) ([]*table.Column, error) {
	cols := make([]*table.Column, len(keys))
	for i, k := range keys {
		if cols[i] = t.Column(k); cols[i] == nil {
			return nil, &KeyNotFoundError{Key: k}
		}
	}
	return cols, nil
}

func encodeRow(buf []byte, cols []*table.Column, i int) ([]byte, bool) {
	ok := true
	for _, c := range cols {
		v := c.Values[i]
		if v == nil {
			ok = false
		}
		buf = table.AppendKey(buf, v)
	}
	return buf, ok
}
