package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
)

type (
	DiskDataStore struct {
		rootPath string
	}
)

func NewDiskDataStore(rootPath string) (*DiskDataStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	dds := &DiskDataStore{
		rootPath: rootPath,
	}

	return dds, nil
}

func (dds *DiskDataStore) path(key string) string {
	return filepath.Join(dds.rootPath, filepath.FromSlash(key))
}

// Put writes to a temp file first so readers never see a partial object.
func (dds *DiskDataStore) Put(ctx context.Context, key string, body io.Reader) error {
	p := dds.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("error in os.CreateTemp: %w", err)
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		return fmt.Errorf("error in io.Copy: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("error closing temp file: %w", err)
	}
	if err = os.Rename(f.Name(), p); err != nil {
		return fmt.Errorf("error in os.Rename: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("key", key).Int64("bytes", n).Msg("wrote file to disk")
	return nil
}

func (dds *DiskDataStore) Open(_ context.Context, key string) (source.ParquetFile, error) {
	f, err := local.NewLocalFileReader(dds.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("error in local.NewLocalFileReader: %w", err)
	}
	return f, nil
}

func (dds *DiskDataStore) Delete(_ context.Context, key string) error {
	err := os.Remove(dds.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error in os.Remove: %w", err)
	}
	return nil
}

func (dds *DiskDataStore) Shutdown(context.Context) error {
	return nil
}
