package table

import (
	"errors"
	"fmt"
	"sort"
)

type (
	Column struct {
		Name string
		Type ColumnType
		// Values holds int64, float64 or string entries matching Type, nil for null
		Values []any
	}

	// Field describes a column without its values.
	Field struct {
		Name string
		Type ColumnType
	}

	// Table is an ordered set of positionally aligned columns. Index names the columns promoted
	// to identify rows; they are always the leading columns.
	Table struct {
		Columns []*Column
		Index   []string
	}
)

var (
	ErrColumnNotFound   = errors.New("column not found")
	ErrDuplicateColumn  = errors.New("duplicate column")
	ErrLengthMismatch   = errors.New("column length mismatch")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrUnsupportedValue = errors.New("unsupported value")
)

// NewColumn builds a column, normalizing and type checking the values.
func NewColumn(name string, typ ColumnType, values ...any) (*Column, error) {
	c := &Column{Name: name, Type: typ, Values: make([]any, len(values))}
	for i, v := range values {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("error normalizing %s[%d]: %w", name, i, err)
		}
		c.Values[i], err = coerce(n, typ)
		if err != nil {
			return nil, fmt.Errorf("error in column %s: %w", name, err)
		}
	}
	return c, nil
}

func Ints(name string, vals ...int64) *Column {
	c := &Column{Name: name, Type: Int, Values: make([]any, len(vals))}
	for i, v := range vals {
		c.Values[i] = v
	}
	return c
}

func Floats(name string, vals ...float64) *Column {
	c := &Column{Name: name, Type: Float, Values: make([]any, len(vals))}
	for i, v := range vals {
		c.Values[i], _ = normalize(v)
	}
	return c
}

func Strings(name string, vals ...string) *Column {
	c := &Column{Name: name, Type: String, Values: make([]any, len(vals))}
	for i, v := range vals {
		c.Values[i] = v
	}
	return c
}

func (c *Column) Len() int {
	return len(c.Values)
}

// New assembles a table from columns of equal length and distinct names.
func New(cols ...*Column) (*Table, error) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		seen[c.Name] = true
		if c.Len() != cols[0].Len() {
			return nil, fmt.Errorf("%w: %s has %d rows, %s has %d", ErrLengthMismatch, c.Name, c.Len(), cols[0].Name, cols[0].Len())
		}
	}
	return &Table{Columns: cols}, nil
}

// MustNew is New for literals in tests and examples.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a zero row table with the given schema.
func Empty(schema []Field) *Table {
	t := &Table{Columns: make([]*Column, len(schema))}
	for i, f := range schema {
		t.Columns[i] = &Column{Name: f.Name, Type: f.Type, Values: []any{}}
	}
	return t
}

func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

func (t *Table) NumCols() int {
	return len(t.Columns)
}

func (t *Table) Schema() []Field {
	fields := make([]Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = Field{Name: c.Name, Type: c.Type}
	}
	return fields
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t *Table) Column(name string) *Column {
	if i := t.ColumnIndex(name); i >= 0 {
		return t.Columns[i]
	}
	return nil
}

func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// AppendRow appends one row, coercing each value into its column's type.
func (t *Table) AppendRow(vals ...any) error {
	if len(vals) != len(t.Columns) {
		return fmt.Errorf("%w: row has %d values for %d columns", ErrLengthMismatch, len(vals), len(t.Columns))
	}
	coerced := make([]any, len(vals))
	for j, v := range vals {
		n, err := normalize(v)
		if err != nil {
			return err
		}
		if coerced[j], err = coerce(n, t.Columns[j].Type); err != nil {
			return fmt.Errorf("error in column %s: %w", t.Columns[j].Name, err)
		}
	}
	for j, c := range t.Columns {
		c.Values = append(c.Values, coerced[j])
	}
	return nil
}

// Take builds a new table from the given row positions. A position of -1 yields a null row.
func (t *Table) Take(rows []int) *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns)), Index: t.Index}
	for j, c := range t.Columns {
		vals := make([]any, len(rows))
		for i, r := range rows {
			if r >= 0 {
				vals[i] = c.Values[r]
			}
		}
		out.Columns[j] = &Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return out
}

// Slice returns rows [start, end) sharing the underlying values.
func (t *Table) Slice(start, end int) *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns)), Index: t.Index}
	for j, c := range t.Columns {
		out.Columns[j] = &Column{Name: c.Name, Type: c.Type, Values: c.Values[start:end:end]}
	}
	return out
}

// Clone deep copies the column slices so the result can be mutated independently.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns)), Index: append([]string(nil), t.Index...)}
	for j, c := range t.Columns {
		out.Columns[j] = &Column{Name: c.Name, Type: c.Type, Values: append([]any(nil), c.Values...)}
	}
	return out
}

// SetIndex promotes the named columns to the index, moving them to the front.
func (t *Table) SetIndex(names ...string) (*Table, error) {
	out := &Table{Index: append([]string(nil), names...)}
	for _, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, n)
		}
		out.Columns = append(out.Columns, c)
	}
	for _, c := range t.Columns {
		if !containsName(names, c.Name) {
			out.Columns = append(out.Columns, c)
		}
	}
	return out, nil
}

// ResetIndex demotes the index back to ordinary columns.
func (t *Table) ResetIndex() *Table {
	return &Table{Columns: t.Columns}
}

// SortBy returns a copy stably sorted by the named columns.
func (t *Table) SortBy(names ...string) (*Table, error) {
	cols := make([]*Column, len(names))
	for i, n := range names {
		if cols[i] = t.Column(n); cols[i] == nil {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, n)
		}
	}
	order := make([]int, t.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		for _, c := range cols {
			if cmp := Compare(c.Values[order[a]], c.Values[order[b]]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return t.Take(order), nil
}

// Concat stacks tables with the same column names. Int and float columns unify to float.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}
	first := tables[0]
	schema := first.Schema()
	total := 0
	for _, t := range tables {
		if t.NumCols() != len(schema) {
			return nil, fmt.Errorf("%w: %v vs %v", ErrSchemaMismatch, first.ColumnNames(), t.ColumnNames())
		}
		for j, c := range t.Columns {
			if c.Name != schema[j].Name {
				return nil, fmt.Errorf("%w: %v vs %v", ErrSchemaMismatch, first.ColumnNames(), t.ColumnNames())
			}
			typ, err := Unify(schema[j].Type, c.Type)
			if err != nil {
				return nil, fmt.Errorf("error in column %s: %w", c.Name, err)
			}
			schema[j].Type = typ
		}
		total += t.NumRows()
	}

	out := &Table{Columns: make([]*Column, len(schema)), Index: first.Index}
	for j, f := range schema {
		vals := make([]any, 0, total)
		for _, t := range tables {
			for _, v := range t.Columns[j].Values {
				cv, err := coerce(v, f.Type)
				if err != nil {
					return nil, err
				}
				vals = append(vals, cv)
			}
		}
		out.Columns[j] = &Column{Name: f.Name, Type: f.Type, Values: vals}
	}
	return out, nil
}

// ToMaps renders rows as name to value maps, nulls omitted.
func (t *Table) ToMaps() []map[string]any {
	rows := make([]map[string]any, t.NumRows())
	for i := range rows {
		row := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			if v := c.Values[i]; v != nil {
				row[c.Name] = v
			}
		}
		rows[i] = row
	}
	return rows
}

// FromMaps infers a table from loosely typed rows such as decoded JSON. Columns are ordered by
// first appearance, ties within one row broken by name. Integral float64 values infer as int.
func FromMaps(rows []map[string]any) (*Table, error) {
	var names []string
	types := map[string]ColumnType{}
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := normalize(row[k])
			if err != nil {
				return nil, fmt.Errorf("error in column %s: %w", k, err)
			}
			prev, seen := types[k]
			if !seen {
				names = append(names, k)
			}
			typ, ok := inferType(v)
			if !ok {
				if !seen {
					types[k] = ""
				}
				continue
			}
			if prev == "" {
				types[k] = typ
				continue
			}
			if types[k], err = Unify(prev, typ); err != nil {
				return nil, fmt.Errorf("error in column %s: %w", k, err)
			}
		}
	}

	t := &Table{}
	for _, n := range names {
		typ := types[n]
		if typ == "" {
			// all null
			typ = Float
		}
		vals := make([]any, len(rows))
		for i, row := range rows {
			v, _ := normalize(row[n])
			if typ == Int {
				if f, isFloat := v.(float64); isFloat {
					v = int64(f)
				}
			}
			cv, err := coerce(v, typ)
			if err != nil {
				return nil, err
			}
			vals[i] = cv
		}
		t.Columns = append(t.Columns, &Column{Name: n, Type: typ, Values: vals})
	}
	return t, nil
}

func inferType(v any) (ColumnType, bool) {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return Int, true
	}
	return TypeOf(v)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
