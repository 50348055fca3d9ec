package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/xitongsys/parquet-go/source"
)

var (
	logger = gologger.NewComponentLogger("datastore")

	ErrNotFound         = errors.New("object not found")
	ErrUnknownDataStore = errors.New("unknown datastore")
)

type (
	// DataStore holds the parquet files of stored datasets. Keys are slash separated paths
	// such as `ds=orders/2JH1x.parquet`.
	DataStore interface {
		// Put writes the whole body under key, replacing any existing object
		Put(ctx context.Context, key string, body io.Reader) error
		// Open returns a parquet source for key, the caller must Close it
		Open(ctx context.Context, key string) (source.ParquetFile, error)
		Delete(ctx context.Context, key string) error

		Shutdown(ctx context.Context) error
	}
)

// FromEnv builds the DataStore selected by the DATASTORE env var.
func FromEnv() (DataStore, error) {
	switch utils.DATASTORE {
	case "disk":
		return NewDiskDataStore(utils.DATA_DIR)
	case "s3":
		return NewS3DataStore(utils.S3_BUCKET_NAME)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataStore, utils.DATASTORE)
	}
}
