package csvio

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/danthegoodman1/icejoin/partition"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewComponentLogger("csvio")

	ErrNoFiles        = errors.New("no files match the glob")
	ErrHeaderMismatch = errors.New("csv files have different headers")
	ErrEmptyFile      = errors.New("csv file has no header")
	ErrBadPattern     = errors.New("file pattern must contain exactly one *")
)

type (
	ReadOptions struct {
		// ChunkSize is a byte size such as "1 kiB" or "64MB"; empty means CSV_BLOCKSIZE. Each
		// file is cut into blocks of about this size at line boundaries, one partition per block.
		ChunkSize string
	}

	block struct {
		file    string
		records [][]string
	}
)

// ReadCSV reads every file matching pathGlob, in lexical order, into a partitioned table.
// Column types are inferred across all files: int when every value parses as an integer, float
// when every value parses as a number, string otherwise. Empty fields are null.
func ReadCSV(ctx context.Context, pathGlob string, opts ReadOptions) (*partition.Table, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	chunk := opts.ChunkSize
	if chunk == "" {
		chunk = utils.CSV_BLOCKSIZE
	}
	blocksize, err := humanize.ParseBytes(chunk)
	if err != nil {
		return nil, fmt.Errorf("error in humanize.ParseBytes for %q: %w", chunk, err)
	}
	if blocksize == 0 {
		return nil, partition.ErrInvalidChunkSize
	}

	files, err := filepath.Glob(pathGlob)
	if err != nil {
		return nil, fmt.Errorf("error in filepath.Glob: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, pathGlob)
	}
	sort.Strings(files)

	s := time.Now()
	var header []string
	var blocks []block
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileHeader, fileBlocks, err := readFileBlocks(file, int(blocksize))
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", file, err)
		}
		if header == nil {
			header = fileHeader
		} else if strings.Join(header, ",") != strings.Join(fileHeader, ",") {
			return nil, fmt.Errorf("%w: %s has %v, expected %v", ErrHeaderMismatch, file, fileHeader, header)
		}
		blocks = append(blocks, fileBlocks...)
	}

	types := inferTypes(header, blocks)
	pt := &partition.Table{}
	for _, b := range blocks {
		t, err := toTable(header, types, b.records)
		if err != nil {
			return nil, fmt.Errorf("error converting block of %s: %w", b.file, err)
		}
		pt.Partitions = append(pt.Partitions, t)
	}
	logger.Debug().Int("files", len(files)).Int("partitions", len(pt.Partitions)).Msgf("read csv in %s", time.Since(s))
	return pt, nil
}

// readFileBlocks splits one file into blocks of roughly blocksize bytes. A block ends after the
// record that crosses the boundary, so quoted fields holding newlines are never cut. A file holding
// just a header yields a single empty block.
func readFileBlocks(file string, blocksize int) ([]string, []block, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("error in os.Open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing header: %w", err)
	}
	r.FieldsPerRecord = len(header)

	var blocks []block
	cur := block{file: file}
	start := r.InputOffset()
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error in csv Read: %w", err)
		}
		cur.records = append(cur.records, rec)
		if r.InputOffset()-start >= int64(blocksize) {
			blocks = append(blocks, cur)
			cur = block{file: file}
			start = r.InputOffset()
		}
	}
	if len(cur.records) > 0 || len(blocks) == 0 {
		blocks = append(blocks, cur)
	}
	return header, blocks, nil
}

func inferTypes(header []string, blocks []block) []table.ColumnType {
	types := make([]table.ColumnType, len(header))
	for j := range header {
		isInt, isFloat := true, true
		for _, b := range blocks {
			for _, rec := range b.records {
				v := rec[j]
				if v == "" {
					continue
				}
				if isInt {
					if _, err := strconv.ParseInt(v, 10, 64); err != nil {
						isInt = false
					}
				}
				if !isInt && isFloat {
					if _, err := strconv.ParseFloat(v, 64); err != nil {
						isFloat = false
					}
				}
			}
		}
		switch {
		case isInt:
			types[j] = table.Int
		case isFloat:
			types[j] = table.Float
		default:
			types[j] = table.String
		}
	}
	return types
}

func toTable(header []string, types []table.ColumnType, records [][]string) (*table.Table, error) {
	cols := make([]*table.Column, len(header))
	for j, name := range header {
		vals := make([]any, len(records))
		for i, rec := range records {
			v, err := parseValue(rec[j], types[j])
			if err != nil {
				return nil, fmt.Errorf("error in column %s row %d: %w", name, i, err)
			}
			vals[i] = v
		}
		cols[j] = &table.Column{Name: name, Type: types[j], Values: vals}
	}
	return table.New(cols...)
}

func parseValue(s string, typ table.ColumnType) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch typ {
	case table.Int:
		return strconv.ParseInt(s, 10, 64)
	case table.Float:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != f {
			return nil, err
		}
		return f, nil
	}
	return s, nil
}

// WriteCSV writes one file per partition into dir. The * in pattern is replaced by the
// zero-padded partition number so that a lexical glob reads partitions back in order.
func WriteCSV(ctx context.Context, pt *partition.Table, dir, pattern string) ([]string, error) {
	if strings.Count(pattern, "*") != 1 {
		return nil, ErrBadPattern
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	width := len(strconv.Itoa(pt.NumPartitions() - 1))

	var paths []string
	for i, p := range pt.Partitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := strings.Replace(pattern, "*", fmt.Sprintf("%0*d", width, i), 1)
		path := filepath.Join(dir, name)
		if err := writeFile(path, p); err != nil {
			return nil, fmt.Errorf("error writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(paths)).Str("dir", dir).Msg("wrote csv partitions")
	return paths, nil
}

func writeFile(path string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error in os.Create: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.ColumnNames()); err != nil {
		return err
	}
	rec := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.Columns {
			rec[j] = formatValue(c.Values[i])
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error in csv Flush: %w", err)
	}
	return f.Close()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		// keep floats distinguishable from ints when read back
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	case string:
		return x
	}
	return fmt.Sprint(v)
}
