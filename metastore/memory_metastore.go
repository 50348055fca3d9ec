package metastore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type (
	MemoryMetaStore struct {
		mu       sync.RWMutex
		datasets map[string]Dataset
		parts    map[string][]PartitionFile
	}
)

func NewMemoryMetaStore() *MemoryMetaStore {
	return &MemoryMetaStore{
		datasets: map[string]Dataset{},
		parts:    map[string][]PartitionFile{},
	}
}

func (mms *MemoryMetaStore) PutDataset(ctx context.Context, ds Dataset, parts []PartitionFile) ([]PartitionFile, error) {
	mms.mu.Lock()
	defer mms.mu.Unlock()

	now := time.Now()
	ds.UpdatedAt = now
	if old, exists := mms.datasets[ds.Name]; exists {
		ds.CreatedAt = old.CreatedAt
	} else {
		ds.CreatedAt = now
	}
	replaced := mms.parts[ds.Name]
	mms.datasets[ds.Name] = ds
	mms.parts[ds.Name] = sortedParts(parts)
	zerolog.Ctx(ctx).Debug().Str("dataset", ds.Name).Int("partitions", len(parts)).Msg("put dataset")
	return replaced, nil
}

func (mms *MemoryMetaStore) GetDataset(_ context.Context, name string) (Dataset, error) {
	mms.mu.RLock()
	defer mms.mu.RUnlock()
	ds, exists := mms.datasets[name]
	if !exists {
		return Dataset{}, ErrDatasetNotFound
	}
	return ds, nil
}

func (mms *MemoryMetaStore) ListDatasets(context.Context) ([]Dataset, error) {
	mms.mu.RLock()
	defer mms.mu.RUnlock()
	var out []Dataset
	for _, ds := range mms.datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (mms *MemoryMetaStore) ListPartitions(_ context.Context, name string) ([]PartitionFile, error) {
	mms.mu.RLock()
	defer mms.mu.RUnlock()
	if _, exists := mms.datasets[name]; !exists {
		return nil, ErrDatasetNotFound
	}
	return append([]PartitionFile(nil), mms.parts[name]...), nil
}

func (mms *MemoryMetaStore) DeleteDataset(_ context.Context, name string) ([]PartitionFile, error) {
	mms.mu.Lock()
	defer mms.mu.Unlock()
	if _, exists := mms.datasets[name]; !exists {
		return nil, ErrDatasetNotFound
	}
	parts := mms.parts[name]
	delete(mms.datasets, name)
	delete(mms.parts, name)
	return parts, nil
}

func (mms *MemoryMetaStore) Shutdown(context.Context) error {
	return nil
}

func sortedParts(parts []PartitionFile) []PartitionFile {
	out := append([]PartitionFile(nil), parts...)
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}
