package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// Retry runs f with exponential backoff until it succeeds, returns a permanent error, or
// maxElapsed passes.
func Retry(ctx context.Context, maxElapsed time.Duration, f func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = maxElapsed

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := f(ctx)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		zerolog.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Str("retryIn", d.String()).Msg("retrying")
	})
	if err != nil {
		return fmt.Errorf("error after %d attempts: %w", attempt, err)
	}
	return nil
}

// ReliableExec acquires a pooled connection and runs f, retrying transient failures.
func ReliableExec(ctx context.Context, pool *pgxpool.Pool, maxElapsed time.Duration, f func(ctx context.Context, conn *pgxpool.Conn) error) error {
	return Retry(ctx, maxElapsed, func(ctx context.Context) error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("error in pool.Acquire: %w", err)
		}
		defer conn.Release()
		return f(ctx, conn)
	})
}

// ReliableExecInTx runs f inside a CRDB transaction, which crdbpgx restarts on serialization
// failures, and retries the whole transaction on other transient errors.
func ReliableExecInTx(ctx context.Context, pool *pgxpool.Pool, maxElapsed time.Duration, f func(ctx context.Context, tx pgx.Tx) error) error {
	return Retry(ctx, maxElapsed, func(ctx context.Context) error {
		return crdbpgx.ExecuteTx(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return f(ctx, tx)
		})
	})
}
