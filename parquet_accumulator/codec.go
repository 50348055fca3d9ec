package parquet_accumulator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/danthegoodman1/icejoin/table"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// SchemaMetadataKey is the footer key holding the table's column names, types and index.
const SchemaMetadataKey = "icejoin.schema"

var ErrMissingSchemaMetadata = errors.New("parquet file has no icejoin schema metadata")

type fileSchema struct {
	Columns []table.Field `json:"columns"`
	Index   []string      `json:"index,omitempty"`
}

// WriteTable writes t as a single parquet file to w.
func WriteTable(w io.Writer, t *table.Table) error {
	psa, err := FromSchema(t.Schema())
	if err != nil {
		return err
	}
	parquetSchema, err := psa.GetSchemaString()
	if err != nil {
		return err
	}

	pw, err := writer.NewJSONWriterFromWriter(parquetSchema, w, 4)
	if err != nil {
		return fmt.Errorf("error in writer.NewJSONWriterFromWriter: %w", err)
	}

	row := make(map[string]any, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.Columns {
			row[FieldName(j)] = c.Values[i]
		}
		b, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("error in json.Marshal: %w", err)
		}
		if err = pw.Write(string(b)); err != nil {
			return fmt.Errorf("error in pw.Write: %w", err)
		}
	}

	if err = pw.Flush(true); err != nil {
		return fmt.Errorf("error in pw.Flush: %w", err)
	}
	meta, err := json.Marshal(fileSchema{Columns: t.Schema(), Index: t.Index})
	if err != nil {
		return fmt.Errorf("error in json.Marshal: %w", err)
	}
	kv := parquet.NewKeyValue()
	metaStr := string(meta)
	kv.Key, kv.Value = SchemaMetadataKey, &metaStr
	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, kv)

	if err = pw.WriteStop(); err != nil {
		return fmt.Errorf("error in pw.WriteStop: %w", err)
	}
	return nil
}

// EncodeTable returns the parquet bytes of t.
func EncodeTable(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTable reads a table previously encoded with EncodeTable.
func DecodeTable(b []byte) (*table.Table, error) {
	pf, err := buffer.NewBufferFile(b)
	if err != nil {
		return nil, fmt.Errorf("error in buffer.NewBufferFile: %w", err)
	}
	return ReadTable(pf)
}

// ReadTable reads every row of a parquet file written by WriteTable. It does not close pf.
func ReadTable(pf source.ParquetFile) (*table.Table, error) {
	pr, err := reader.NewParquetReader(pf, nil, 4)
	if err != nil {
		return nil, fmt.Errorf("error in reader.NewParquetReader: %w", err)
	}
	defer pr.ReadStop()

	var fs *fileSchema
	for _, kv := range pr.Footer.KeyValueMetadata {
		if kv.Key != SchemaMetadataKey || kv.Value == nil {
			continue
		}
		fs = &fileSchema{}
		if err := json.Unmarshal([]byte(*kv.Value), fs); err != nil {
			return nil, fmt.Errorf("error in json.Unmarshal of schema metadata: %w", err)
		}
	}
	if fs == nil {
		return nil, ErrMissingSchemaMetadata
	}

	t := table.Empty(fs.Columns)
	t.Index = fs.Index
	num := int(pr.GetNumRows())
	if num == 0 {
		return t, nil
	}

	res, err := pr.ReadByNumber(num)
	if err != nil {
		return nil, fmt.Errorf("error in pr.ReadByNumber: %w", err)
	}
	for _, item := range res {
		// row is a struct of pointers, one field per column
		v := reflect.ValueOf(item)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		typeOf := v.Type()
		for i := 0; i < v.NumField(); i++ {
			col, err := columnOf(typeOf.Field(i).Name, len(t.Columns))
			if err != nil {
				return nil, err
			}
			f := v.Field(i)
			var val any
			if f.Kind() == reflect.Ptr {
				if !f.IsNil() {
					val = f.Elem().Interface()
				}
			} else {
				val = f.Interface()
			}
			t.Columns[col].Values = append(t.Columns[col].Values, val)
		}
	}
	out, err := table.New(t.Columns...)
	if err != nil {
		return nil, fmt.Errorf("error in table.New: %w", err)
	}
	out.Index = fs.Index
	return out, nil
}

func columnOf(fieldName string, numCols int) (int, error) {
	i, err := strconv.Atoi(strings.TrimPrefix(fieldName, "C"))
	if err != nil || i < 0 || i >= numCols {
		return 0, fmt.Errorf("unexpected parquet field %q", fieldName)
	}
	return i, nil
}
