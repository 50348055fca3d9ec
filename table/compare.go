package table

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"
)

var ErrNotEquivalent = errors.New("tables not equivalent")

type (
	EquivalentOptions struct {
		// Tolerance is both the absolute and relative tolerance for float cells
		Tolerance float64
		// CheckTypes requires identical column types, otherwise int and float cells compare numerically
		CheckTypes bool
		// CheckOrder compares rows positionally instead of as a multiset
		CheckOrder bool
	}

	EquivalentOption func(*EquivalentOptions)
)

func WithTolerance(tol float64) EquivalentOption {
	return func(o *EquivalentOptions) { o.Tolerance = tol }
}

func IgnoreTypes() EquivalentOption {
	return func(o *EquivalentOptions) { o.CheckTypes = false }
}

func CheckOrder() EquivalentOption {
	return func(o *EquivalentOptions) { o.CheckOrder = true }
}

// Equivalent reports whether a and b hold the same columns, index and row multiset. A nil
// error means they are equivalent; otherwise the error wraps ErrNotEquivalent and describes the
// first difference found.
func Equivalent(a, b *Table, opts ...EquivalentOption) error {
	o := EquivalentOptions{Tolerance: 1e-9, CheckTypes: true}
	for _, opt := range opts {
		opt(&o)
	}

	if fmt.Sprint(a.ColumnNames()) != fmt.Sprint(b.ColumnNames()) {
		return fmt.Errorf("%w: columns %v vs %v", ErrNotEquivalent, a.ColumnNames(), b.ColumnNames())
	}
	if fmt.Sprint(a.Index) != fmt.Sprint(b.Index) {
		return fmt.Errorf("%w: index %v vs %v", ErrNotEquivalent, a.Index, b.Index)
	}
	if o.CheckTypes {
		for j, c := range a.Columns {
			if c.Type != b.Columns[j].Type {
				return fmt.Errorf("%w: column %s is %s vs %s", ErrNotEquivalent, c.Name, c.Type, b.Columns[j].Type)
			}
		}
	}
	if a.NumRows() != b.NumRows() {
		return fmt.Errorf("%w: %d rows vs %d rows", ErrNotEquivalent, a.NumRows(), b.NumRows())
	}

	ra, rb := rowsOf(a), rowsOf(b)
	if !o.CheckOrder {
		sortRows(ra)
		sortRows(rb)
	}
	for i := range ra {
		for j := range ra[i] {
			if !cellsEqual(ra[i][j], rb[i][j], o.Tolerance) {
				return fmt.Errorf("%w: row %v vs %v", ErrNotEquivalent, ra[i], rb[i])
			}
		}
	}
	return nil
}

func rowsOf(t *Table) [][]any {
	rows := make([][]any, t.NumRows())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

func sortRows(rows [][]any) {
	sort.SliceStable(rows, func(i, j int) bool {
		return CompareRows(rows[i], rows[j]) < 0
	})
}

func cellsEqual(a, b any, tol float64) bool {
	if rank(a) != rank(b) {
		return false
	}
	switch rank(a) {
	case 0:
		return true
	case 1:
		ai, aInt := a.(int64)
		bi, bInt := b.(int64)
		if aInt && bInt {
			return ai == bi
		}
		return scalar.EqualWithinAbsOrRel(toFloat(a), toFloat(b), tol, tol)
	default:
		return a.(string) == b.(string)
	}
}
