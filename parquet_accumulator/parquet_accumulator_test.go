package parquet_accumulator

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/danthegoodman1/gojsonutils"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/xitongsys/parquet-go-source/local"
)

func TestGetSchemaString(t *testing.T) {
	a := NewParquetAccumulator()
	if err := a.AddColumn("colA", table.String); err != nil {
		t.Fatal(err)
	}
	if err := a.AddColumn("colB", table.Float); err != nil {
		t.Fatal(err)
	}
	if err := a.AddColumn("colC", table.Int); err != nil {
		t.Fatal(err)
	}
	// repeated names are ignored
	if err := a.AddColumn("colA", table.Int); err != nil {
		t.Fatal(err)
	}

	schemaString, err := a.GetSchemaString()
	if err != nil {
		t.Fatal(err)
	}
	if schemaString != `{"Tag":"name=parquet_go_root, repetitiontype=REQUIRED","Fields":[{"Tag":"type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN, name=C0, repetitiontype=OPTIONAL"},{"Tag":"type=DOUBLE, name=C1, repetitiontype=OPTIONAL"},{"Tag":"type=INT64, name=C2, repetitiontype=OPTIONAL"}]}` {
		t.Log(schemaString)
		t.Fatal("got incorrect schema string")
	}
	if fmt.Sprint(a.GetColumnNames()) != "[colA colB colC]" {
		t.Fatal("bad column names", a.GetColumnNames())
	}
	if fmt.Sprint(a.GetColumnTypes()) != "[string float int]" {
		t.Fatal("bad column types", a.GetColumnTypes())
	}
}

func TestEmptySchema(t *testing.T) {
	a := NewParquetAccumulator()
	if _, err := a.GetSchemaString(); err != ErrNoColumns {
		t.Fatal("expected ErrNoColumns, got", err)
	}
	if err := a.AddColumn("x", table.ColumnType("list")); err == nil {
		t.Fatal("expected an unsupported type error")
	}
}

func TestFullCycle(t *testing.T) {
	jsonMap := map[string]any{
		"colA": map[string]any{
			"a": utils.Ptr("hey"),
			"b": 2,
		},
		"colB": 1.2,
	}
	flat, err := gojsonutils.Flatten(jsonMap, nil)
	if err != nil {
		t.Fatal("error flattening JSON map")
	}
	flatMap, ok := flat.(map[string]any)
	if !ok {
		t.Fatal(fmt.Sprintf("got a non flat map: %+v", flat))
	}
	tbl, err := table.FromMaps([]map[string]any{flatMap, {"colB": 2.5}})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumCols() != 3 {
		t.Fatal("expected 3 flattened columns, got", tbl.ColumnNames())
	}

	path := filepath.Join(t.TempDir(), "temp.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err = WriteTable(f, tbl); err != nil {
		t.Fatal(err)
	}
	f.Close()

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatal("Can't open file", err)
	}
	defer fr.Close()

	back, err := ReadTable(fr)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("rows: %+v", back.ToMaps())
	if err = table.Equivalent(tbl, back, table.CheckOrder()); err != nil {
		t.Fatal(err)
	}
}

func TestEncodeDecode(t *testing.T) {
	tbl := table.MustNew(
		table.Ints("x", 1, 2, 3),
		&table.Column{Name: "a", Type: table.Float, Values: []any{0.5, nil, -3.25}},
		&table.Column{Name: "name with spaces", Type: table.String, Values: []any{"a", "", nil}},
	)
	tbl, err := tbl.SetIndex("x")
	if err != nil {
		t.Fatal(err)
	}

	b, err := EncodeTable(tbl)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeTable(b)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(back.Index) != "[x]" {
		t.Fatal("index not preserved", back.Index)
	}
	if err = table.Equivalent(tbl, back, table.CheckOrder()); err != nil {
		t.Fatal(err)
	}
}

func TestEncodeDecodeEmpty(t *testing.T) {
	tbl := table.Empty([]table.Field{{Name: "x", Type: table.Int}, {Name: "s", Type: table.String}})
	b, err := EncodeTable(tbl)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeTable(b)
	if err != nil {
		t.Fatal(err)
	}
	if back.NumRows() != 0 || back.NumCols() != 2 {
		t.Fatal("expected an empty table with 2 columns, got", back.ColumnNames(), back.NumRows())
	}
}
