package http_server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danthegoodman1/gojsonutils"
	"github.com/danthegoodman1/icejoin/dataset"
	"github.com/danthegoodman1/icejoin/join"
	"github.com/danthegoodman1/icejoin/partition"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
)

const defaultChunkSize = 1000

var (
	ErrNotFlatMap = errors.New("not a flat map")
	ErrNoRows     = utils.PermError("no rows found")
)

type (
	// TableInput is a table sent inline with a request. Nested objects are flattened into
	// dotted column names.
	TableInput struct {
		// Line-delimited JSON (NDJSON)
		RowsString *string
		// Array of JSON
		Rows []map[string]any
		// Index columns, used as the keys of an index join
		Index []string
		// Rows per partition, default 1000
		ChunkSize int `validate:"gte=0"`
	}

	TableOutput struct {
		Columns       []string
		Index         []string `json:",omitempty"`
		Rows          []map[string]any
		NumRows       int
		NumPartitions int
	}
)

func flatten(raw map[string]any) (map[string]any, error) {
	flat, err := gojsonutils.Flatten(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("error flattening JSON map: %w", err)
	}
	flatMap, ok := flat.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %+v", ErrNotFlatMap, flat)
	}
	return flatMap, nil
}

// flatRows extracts rows (flattened) from either format (JSON, NDJSON).
func (ti *TableInput) flatRows() ([]map[string]any, error) {
	var rows []map[string]any
	if ti.RowsString != nil {
		ndJSONScanner := bufio.NewScanner(strings.NewReader(*ti.RowsString))
		ndJSONScanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for ndJSONScanner.Scan() {
			line := strings.TrimSpace(ndJSONScanner.Text())
			if line == "" {
				continue
			}
			var raw any
			if err := json.Unmarshal([]byte(line), &raw); err != nil {
				return nil, utils.Permanent(fmt.Errorf("line was not JSON: %w", err))
			}
			jsonMap, ok := raw.(map[string]any)
			if !ok {
				return nil, utils.PermError("line was not a JSON object")
			}
			flatMap, err := flatten(jsonMap)
			if err != nil {
				return nil, err
			}
			rows = append(rows, flatMap)
		}
		if err := ndJSONScanner.Err(); err != nil {
			return nil, fmt.Errorf("error scanning NDJSON: %w", err)
		}
	} else {
		for _, row := range ti.Rows {
			flatMap, err := flatten(row)
			if err != nil {
				return nil, err
			}
			rows = append(rows, flatMap)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// Partitioned converts the input into a partitioned table.
func (ti *TableInput) Partitioned() (*partition.Table, error) {
	rows, err := ti.flatRows()
	if err != nil {
		return nil, err
	}
	t, err := table.FromMaps(rows)
	if err != nil {
		return nil, fmt.Errorf("error in table.FromMaps: %w", err)
	}
	if len(ti.Index) > 0 {
		if t, err = t.SetIndex(ti.Index...); err != nil {
			return nil, fmt.Errorf("error setting index: %w", err)
		}
	}
	chunk := ti.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return partition.FromTable(t, chunk)
}

func toOutput(pt *partition.Table) (*TableOutput, error) {
	t, err := pt.Compute()
	if err != nil {
		return nil, fmt.Errorf("error in Compute: %w", err)
	}
	return &TableOutput{
		Columns:       t.ColumnNames(),
		Index:         pt.Index,
		Rows:          utils.ArrayOrEmpty(t.ToMaps()),
		NumRows:       t.NumRows(),
		NumPartitions: pt.NumPartitions(),
	}, nil
}

var userErrors = []error{
	table.ErrColumnNotFound,
	table.ErrDuplicateColumn,
	table.ErrLengthMismatch,
	table.ErrTypeMismatch,
	table.ErrSchemaMismatch,
	table.ErrUnsupportedValue,
	partition.ErrInvalidChunkSize,
	ErrNotFlatMap,
}

// RespondError maps domain errors to status codes, anything unexpected is an internal error.
func (c *CustomContext) RespondError(err error, msg string) error {
	var sfe *join.ShuffleFailureError
	if errors.As(err, &sfe) {
		return c.InternalError(err, msg)
	}
	if dataset.IsNotFound(err) {
		return c.String(http.StatusNotFound, err.Error())
	}
	if utils.IsPermanent(err) {
		return c.String(http.StatusBadRequest, err.Error())
	}
	for _, ue := range userErrors {
		if errors.Is(err, ue) {
			return c.String(http.StatusBadRequest, err.Error())
		}
	}
	return c.InternalError(err, msg)
}
