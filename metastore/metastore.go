package metastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/icejoin/crdb"
	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
)

var (
	logger = gologger.NewComponentLogger("metastore")

	ErrDatasetNotFound  = utils.PermError("dataset not found")
	ErrUnknownMetaStore = errors.New("unknown metastore")
)

type (
	// MetaStore is the catalog of stored datasets.
	MetaStore interface {
		// PutDataset creates or replaces a dataset and its partition files in one step. It returns
		// the partition files of the replaced version, if any, so the caller can remove them.
		PutDataset(ctx context.Context, ds Dataset, parts []PartitionFile) (replaced []PartitionFile, err error)
		// GetDataset returns ErrDatasetNotFound when name is not in the catalog
		GetDataset(ctx context.Context, name string) (Dataset, error)
		ListDatasets(ctx context.Context) ([]Dataset, error)
		// ListPartitions returns the partition files of a dataset ordered by Num
		ListPartitions(ctx context.Context, name string) ([]PartitionFile, error)
		DeleteDataset(ctx context.Context, name string) ([]PartitionFile, error)

		Shutdown(ctx context.Context) error
	}

	Dataset struct {
		ID      string
		Name    string
		Columns []table.Field
		Index   []string

		CreatedAt time.Time
		UpdatedAt time.Time
	}

	PartitionFile struct {
		Num   int
		Key   string
		Rows  int64
		Bytes int64
	}
)

// NumRows sums the row counts of parts.
func NumRows(parts []PartitionFile) (n int64) {
	for _, p := range parts {
		n += p.Rows
	}
	return
}

// FromEnv builds the MetaStore selected by the METASTORE env var. The crdb store expects
// crdb.ConnectToDB to have run.
func FromEnv() (MetaStore, error) {
	switch utils.METASTORE {
	case "memory":
		return NewMemoryMetaStore(), nil
	case "crdb":
		if crdb.PGPool == nil {
			return nil, fmt.Errorf("crdb metastore selected but not connected")
		}
		return NewCRDBMetaStore(crdb.PGPool), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetaStore, utils.METASTORE)
	}
}
