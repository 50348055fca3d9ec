package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/icejoin/utils"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

type (
	CRDBMetaStore struct {
		pool *pgxpool.Pool
		// MaxRetryTime bounds the retries of a single catalog operation
		MaxRetryTime time.Duration
	}
)

func NewCRDBMetaStore(pool *pgxpool.Pool) *CRDBMetaStore {
	return &CRDBMetaStore{
		pool:         pool,
		MaxRetryTime: time.Second * 10,
	}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (cms *CRDBMetaStore) PutDataset(ctx context.Context, ds Dataset, parts []PartitionFile) ([]PartitionFile, error) {
	logger := zerolog.Ctx(ctx)
	cols, err := json.Marshal(ds.Columns)
	if err != nil {
		return nil, fmt.Errorf("error in json.Marshal: %w", err)
	}

	var replaced []PartitionFile
	err = utils.ReliableExecInTx(ctx, cms.pool, cms.MaxRetryTime, func(ctx context.Context, tx pgx.Tx) error {
		replaced, err = listPartitions(ctx, tx, ds.Name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM dataset_partitions WHERE dataset = $1`, ds.Name)
		if err != nil {
			return fmt.Errorf("error deleting old partitions: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO datasets (name, id, columns, index_columns)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE SET
				id = excluded.id,
				columns = excluded.columns,
				index_columns = excluded.index_columns,
				updated_at = now()
		`, ds.Name, ds.ID, cols, utils.ArrayOrEmpty(ds.Index))
		if err != nil {
			return fmt.Errorf("error upserting dataset: %w", err)
		}

		b := &pgx.Batch{}
		for _, p := range parts {
			b.Queue(`INSERT INTO dataset_partitions (dataset, num, file_key, row_count, byte_count) VALUES ($1, $2, $3, $4, $5)`,
				ds.Name, p.Num, p.Key, p.Rows, p.Bytes)
		}
		br := tx.SendBatch(ctx, b)
		for range parts {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("error inserting partition: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("error in ReliableExecInTx: %w", err)
	}
	logger.Debug().Str("dataset", ds.Name).Int("partitions", len(parts)).Int("replaced", len(replaced)).Msg("put dataset")
	return replaced, nil
}

func (cms *CRDBMetaStore) GetDataset(ctx context.Context, name string) (ds Dataset, err error) {
	err = utils.ReliableExec(ctx, cms.pool, cms.MaxRetryTime, func(ctx context.Context, conn *pgxpool.Conn) error {
		ds, err = getDataset(ctx, conn, name)
		return err
	})
	return
}

func (cms *CRDBMetaStore) ListDatasets(ctx context.Context) (out []Dataset, err error) {
	err = utils.ReliableExec(ctx, cms.pool, cms.MaxRetryTime, func(ctx context.Context, conn *pgxpool.Conn) error {
		out = nil
		rows, err := conn.Query(ctx, `SELECT name, id, columns, index_columns, created_at, updated_at FROM datasets ORDER BY name`)
		if err != nil {
			return fmt.Errorf("error in Query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			ds, err := scanDataset(rows)
			if err != nil {
				return err
			}
			out = append(out, ds)
		}
		return rows.Err()
	})
	return
}

func (cms *CRDBMetaStore) ListPartitions(ctx context.Context, name string) (parts []PartitionFile, err error) {
	err = utils.ReliableExec(ctx, cms.pool, cms.MaxRetryTime, func(ctx context.Context, conn *pgxpool.Conn) error {
		if _, err := getDataset(ctx, conn, name); err != nil {
			return err
		}
		parts, err = listPartitions(ctx, conn, name)
		return err
	})
	return
}

func (cms *CRDBMetaStore) DeleteDataset(ctx context.Context, name string) (parts []PartitionFile, err error) {
	err = utils.ReliableExecInTx(ctx, cms.pool, cms.MaxRetryTime, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := getDataset(ctx, tx, name); err != nil {
			return err
		}
		if parts, err = listPartitions(ctx, tx, name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dataset_partitions WHERE dataset = $1`, name); err != nil {
			return fmt.Errorf("error deleting partitions: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM datasets WHERE name = $1`, name); err != nil {
			return fmt.Errorf("error deleting dataset: %w", err)
		}
		return nil
	})
	return
}

func (cms *CRDBMetaStore) Shutdown(context.Context) error {
	logger.Debug().Msg("closing crdb pool")
	cms.pool.Close()
	return nil
}

func getDataset(ctx context.Context, q queryer, name string) (Dataset, error) {
	row := q.QueryRow(ctx, `SELECT name, id, columns, index_columns, created_at, updated_at FROM datasets WHERE name = $1`, name)
	ds, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ds, ErrDatasetNotFound
	}
	return ds, err
}

func scanDataset(row pgx.Row) (Dataset, error) {
	var ds Dataset
	var cols []byte
	err := row.Scan(&ds.Name, &ds.ID, &cols, &ds.Index, &ds.CreatedAt, &ds.UpdatedAt)
	if err != nil {
		return ds, fmt.Errorf("error scanning dataset: %w", err)
	}
	if err = json.Unmarshal(cols, &ds.Columns); err != nil {
		return ds, fmt.Errorf("error in json.Unmarshal of columns: %w", err)
	}
	return ds, nil
}

func listPartitions(ctx context.Context, q queryer, name string) ([]PartitionFile, error) {
	rows, err := q.Query(ctx, `SELECT num, file_key, row_count, byte_count FROM dataset_partitions WHERE dataset = $1 ORDER BY num`, name)
	if err != nil {
		return nil, fmt.Errorf("error in Query: %w", err)
	}
	defer rows.Close()
	var parts []PartitionFile
	for rows.Next() {
		var p PartitionFile
		if err := rows.Scan(&p.Num, &p.Key, &p.Rows, &p.Bytes); err != nil {
			return nil, fmt.Errorf("error scanning partition: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
