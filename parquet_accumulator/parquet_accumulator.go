package parquet_accumulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danthegoodman1/icejoin/table"
)

type (
	// ParquetSchemaAccumulator collects table columns into a parquet-go JSON schema. Parquet
	// field names are positional (C0, C1, ...) since parquet-go needs them to be exported Go
	// identifiers; the real names travel in the file metadata.
	ParquetSchemaAccumulator struct {
		schema ParquetSchema
		fields []table.Field
	}

	ParquetSchema struct {
		TagStructs SchemaTag        `json:"-,omitempty"`
		Fields     []*ParquetSchema `json:",omitempty"`
	}

	ParquetJSONSchema struct {
		Tag    string               `json:",omitempty"`
		Fields []*ParquetJSONSchema `json:",omitempty"`
	}

	SchemaTag struct {
		Name           string         `json:"name,omitempty"`
		Type           string         `json:"type,omitempty"`
		ConvertedType  string         `json:"convertedtype,omitempty"`
		RepetitionType RepetitionType `json:"repetitiontype,omitempty"`
		Encoding       string         `json:"encoding,omitempty"`
	}

	RepetitionType string
)

var (
	Optional RepetitionType = "OPTIONAL"
	Required RepetitionType = "REQUIRED"

	ErrNoColumns       = errors.New("a parquet schema needs at least one column")
	ErrUnsupportedType = errors.New("unsupported column type")
)

func NewParquetAccumulator() ParquetSchemaAccumulator {
	return ParquetSchemaAccumulator{
		schema: ParquetSchema{
			TagStructs: SchemaTag{
				Name:           "parquet_go_root",
				RepetitionType: Required,
			},
		},
	}
}

// FromSchema accumulates every field of a table schema in order.
func FromSchema(fields []table.Field) (ParquetSchemaAccumulator, error) {
	pa := NewParquetAccumulator()
	for _, f := range fields {
		if err := pa.AddColumn(f.Name, f.Type); err != nil {
			return pa, err
		}
	}
	return pa, nil
}

// AddColumn appends a column, ignoring names that were already added.
func (pa *ParquetSchemaAccumulator) AddColumn(name string, typ table.ColumnType) error {
	if pa.fieldExists(name) {
		return nil
	}
	schema, err := getParquetSchema(FieldName(len(pa.fields)), typ)
	if err != nil {
		return fmt.Errorf("column %s: %w", name, err)
	}
	pa.schema.Fields = append(pa.schema.Fields, schema)
	pa.fields = append(pa.fields, table.Field{Name: name, Type: typ})
	return nil
}

// FieldName is the parquet field name of the i-th column.
func FieldName(i int) string {
	return "C" + strconv.Itoa(i)
}

func getParquetSchema(name string, typ table.ColumnType) (*ParquetSchema, error) {
	schema := &ParquetSchema{
		TagStructs: SchemaTag{
			Name:           name,
			RepetitionType: Optional,
		},
	}
	switch typ {
	case table.String:
		schema.TagStructs.Type = "BYTE_ARRAY"
		schema.TagStructs.ConvertedType = "UTF8"
		schema.TagStructs.Encoding = "PLAIN"
	case table.Int:
		schema.TagStructs.Type = "INT64"
	case table.Float:
		schema.TagStructs.Type = "DOUBLE"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
	return schema, nil
}

func (pa *ParquetSchemaAccumulator) fieldExists(fieldName string) (exists bool) {
	for _, field := range pa.fields {
		if field.Name == fieldName {
			return true
		}
	}
	return
}

func (pa *ParquetSchemaAccumulator) GetColumnNames() []string {
	var cols []string
	for _, field := range pa.fields {
		cols = append(cols, field.Name)
	}
	return cols
}

// GetColumnTypes returns the types of columns in the same order: `int`, `float` or `string`
func (pa *ParquetSchemaAccumulator) GetColumnTypes() []string {
	var cols []string
	for _, field := range pa.fields {
		cols = append(cols, string(field.Type))
	}
	return cols
}

func (pa *ParquetSchemaAccumulator) Fields() []table.Field {
	return append([]table.Field(nil), pa.fields...)
}

func (ps *ParquetSchema) GetType() table.ColumnType {
	switch ps.TagStructs.Type {
	case "BYTE_ARRAY":
		return table.String
	case "INT64":
		return table.Int
	default:
		return table.Float
	}
}

// ToParquetJSONSchema recursively converts
func (ps *ParquetSchema) ToParquetJSONSchema() *ParquetJSONSchema {
	var tagArr []string
	if ps.TagStructs.Type != "" {
		tagArr = append(tagArr, "type="+ps.TagStructs.Type)
	}
	if ps.TagStructs.ConvertedType != "" {
		tagArr = append(tagArr, "convertedtype="+ps.TagStructs.ConvertedType)
	}
	if ps.TagStructs.Encoding != "" {
		tagArr = append(tagArr, "encoding="+ps.TagStructs.Encoding)
	}
	if ps.TagStructs.Name != "" {
		tagArr = append(tagArr, "name="+ps.TagStructs.Name)
	}
	if string(ps.TagStructs.RepetitionType) != "" {
		tagArr = append(tagArr, "repetitiontype="+string(ps.TagStructs.RepetitionType))
	}
	var fields []*ParquetJSONSchema
	for _, field := range ps.Fields {
		fields = append(fields, field.ToParquetJSONSchema())
	}
	return &ParquetJSONSchema{
		Tag:    strings.Join(tagArr, ", "),
		Fields: fields,
	}
}

// GetSchemaString returns the JSON formatted schema string
func (pa *ParquetSchemaAccumulator) GetSchemaString() (string, error) {
	if len(pa.schema.Fields) == 0 {
		return "", ErrNoColumns
	}
	b, err := json.Marshal(pa.schema.ToParquetJSONSchema())
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}
