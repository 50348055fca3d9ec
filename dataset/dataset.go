package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/danthegoodman1/icejoin/datastore"
	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/danthegoodman1/icejoin/metastore"
	"github.com/danthegoodman1/icejoin/metrics"
	"github.com/danthegoodman1/icejoin/parquet_accumulator"
	"github.com/danthegoodman1/icejoin/partition"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewComponentLogger("dataset")

	ErrInvalidName = utils.PermError("dataset names may only contain letters, digits, _ and -")

	validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Store keeps named partitioned tables: one parquet file per partition in the DataStore and a
// catalog entry in the MetaStore.
type Store struct {
	Data datastore.DataStore
	Meta metastore.MetaStore
}

func NewStore(ds datastore.DataStore, ms metastore.MetaStore) *Store {
	return &Store{Data: ds, Meta: ms}
}

// PartitionKey is where partition files of a dataset live, `ds=<name>/<ksuid>.parquet`.
func PartitionKey(name string) string {
	return fmt.Sprintf("ds=%s/%s.parquet", name, utils.GenKSortedID(""))
}

// Save stores pt under name, replacing any previous version once the new one is committed.
func (s *Store) Save(ctx context.Context, name string, pt *partition.Table) (ds metastore.Dataset, err error) {
	defer func() { observe("save", err) }()
	if !validName.MatchString(name) {
		return ds, ErrInvalidName
	}
	if pt.NumPartitions() == 0 {
		return ds, partition.ErrNoPartitions
	}
	ctx = logger.With().Str("dataset", name).Logger().WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	start := time.Now()
	var files []metastore.PartitionFile
	var written uint64
	cleanup := func() {
		s.deleteFiles(ctx, files)
	}
	for i, p := range pt.Partitions {
		if err = ctx.Err(); err != nil {
			cleanup()
			return ds, err
		}
		withIndex := *p
		withIndex.Index = pt.Index
		b, err := parquet_accumulator.EncodeTable(&withIndex)
		if err != nil {
			cleanup()
			return ds, fmt.Errorf("error encoding partition %d: %w", i, err)
		}
		key := PartitionKey(name)
		if err = s.Data.Put(ctx, key, bytes.NewReader(b)); err != nil {
			cleanup()
			return ds, fmt.Errorf("error in Data.Put for partition %d: %w", i, err)
		}
		files = append(files, metastore.PartitionFile{Num: i, Key: key, Rows: int64(p.NumRows()), Bytes: int64(len(b))})
		written += uint64(len(b))
	}

	ds = metastore.Dataset{
		ID:      utils.GenRandomID("ds_"),
		Name:    name,
		Columns: pt.Schema(),
		Index:   pt.Index,
	}
	replaced, err := s.Meta.PutDataset(ctx, ds, files)
	if err != nil {
		cleanup()
		return ds, fmt.Errorf("error in Meta.PutDataset: %w", err)
	}
	s.deleteFiles(ctx, replaced)

	logger.Debug().Int("partitions", len(files)).Str("bytes", humanize.Bytes(written)).Msgf("saved dataset in %s", time.Since(start))
	return ds, nil
}

// Load reads every partition of a stored dataset, in partition order.
func (s *Store) Load(ctx context.Context, name string) (pt *partition.Table, err error) {
	defer func() { observe("load", err) }()
	ds, err := s.Meta.GetDataset(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error in Meta.GetDataset: %w", err)
	}
	files, err := s.Meta.ListPartitions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error in Meta.ListPartitions: %w", err)
	}
	if len(files) == 0 {
		empty := table.Empty(ds.Columns)
		empty.Index = ds.Index
		return &partition.Table{Partitions: []*table.Table{empty}, Index: ds.Index}, nil
	}

	parts := make([]*table.Table, len(files))
	for i, f := range files {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		pf, err := s.Data.Open(ctx, f.Key)
		if err != nil {
			return nil, fmt.Errorf("error in Data.Open for %s: %w", f.Key, err)
		}
		t, err := parquet_accumulator.ReadTable(pf)
		pf.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", f.Key, err)
		}
		parts[i] = t
	}
	pt, err = partition.New(parts...)
	if err != nil {
		return nil, err
	}
	pt.Index = ds.Index
	zerolog.Ctx(ctx).Debug().Str("dataset", name).Int("partitions", len(parts)).Int("rows", pt.NumRows()).Msg("loaded dataset")
	return pt, nil
}

// Delete removes the catalog entry and then the partition files.
func (s *Store) Delete(ctx context.Context, name string) (err error) {
	defer func() { observe("delete", err) }()
	files, err := s.Meta.DeleteDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("error in Meta.DeleteDataset: %w", err)
	}
	s.deleteFiles(ctx, files)
	return nil
}

func (s *Store) List(ctx context.Context) ([]metastore.Dataset, error) {
	return s.Meta.ListDatasets(ctx)
}

// deleteFiles is best effort, orphaned files are only logged.
func (s *Store) deleteFiles(ctx context.Context, files []metastore.PartitionFile) {
	for _, f := range files {
		if err := s.Data.Delete(ctx, f.Key); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", f.Key).Msg("failed to delete partition file")
		}
	}
}

// IsNotFound reports whether err means the dataset or one of its files does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, metastore.ErrDatasetNotFound) || errors.Is(err, datastore.ErrNotFound)
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.DatasetOps.WithLabelValues(op, status).Inc()
}
