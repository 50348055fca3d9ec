package join

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/danthegoodman1/icejoin/metrics"
	"github.com/danthegoodman1/icejoin/partition"
	"github.com/danthegoodman1/icejoin/partitioner"
	"github.com/danthegoodman1/icejoin/table"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

var logger = gologger.NewComponentLogger("join")

// Join performs an index join: rows are matched on the key columns (the inputs' index unless
// opts.On names them), and the keys become the result's index.
func Join(ctx context.Context, left, right *partition.Table, opts Options) (*partition.Table, error) {
	return run(ctx, "join", left, right, opts, true)
}

// Merge joins on ordinary columns; the result carries no index.
func Merge(ctx context.Context, left, right *partition.Table, opts Options) (*partition.Table, error) {
	return run(ctx, "merge", left, right, opts, false)
}

func run(ctx context.Context, op string, left, right *partition.Table, opts Options, indexed bool) (res *partition.Table, err error) {
	start := time.Now()
	how := opts.How
	status := "ok"
	defer func() {
		if err != nil {
			status = "error"
		}
		metrics.JoinsTotal.WithLabelValues(op, string(how), status).Inc()
		metrics.JoinDuration.WithLabelValues(op, string(how)).Observe(time.Since(start).Seconds())
	}()

	if left.NumPartitions() == 0 || right.NumPartitions() == 0 {
		return nil, partition.ErrNoPartitions
	}
	spec, err := Resolve(left.Schema(), right.Schema(), left.Index, right.Index, opts, indexed)
	if err != nil {
		return nil, err
	}
	how = spec.How

	plan := &partitioner.BucketPlan{
		Func:    opts.partitionFunc(),
		Keys:    spec.Keys,
		Buckets: opts.Buckets,
	}
	if plan.Buckets <= 0 {
		plan.Buckets = left.NumPartitions()
		if right.NumPartitions() > plan.Buckets {
			plan.Buckets = right.NumPartitions()
		}
	}
	if plan.Func == partitioner.Range {
		all := append(append([]*table.Table{}, left.Partitions...), right.Partitions...)
		plan.Divisions, err = partitioner.ComputeDivisions(spec.Keys, plan.Buckets, all...)
		if err != nil {
			return nil, &ShuffleFailureError{Side: "both", Bucket: -1, Err: err}
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = int(utils.JOIN_WORKERS)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	maxRows := opts.MaxBucketRows
	if maxRows <= 0 {
		maxRows = int(utils.SHUFFLE_MAX_BUCKET_ROWS)
	}

	ctx = logger.With().Str("op", op).Str("how", string(spec.How)).Logger().WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		logger.Error().Interface("panic", v).Msg("join worker panic")
	}))
	if err != nil {
		return nil, &ShuffleFailureError{Side: "both", Bucket: -1, Err: fmt.Errorf("error in ants.NewPool: %w", err)}
	}
	defer pool.Release()

	st := time.Now()
	leftPieces, rightPieces, err := shuffle(ctx, pool, left, right, plan)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("buckets", plan.Buckets).Int("leftRows", left.NumRows()).Int("rightRows", right.NumRows()).Msgf("shuffled in %s", time.Since(st))

	st = time.Now()
	out := make([]*table.Table, plan.Buckets)
	err = runStage(ctx, pool, plan.Buckets, func(ctx context.Context, b int) error {
		lb, err := gather(leftPieces, b, "left", maxRows)
		if err != nil {
			return err
		}
		rb, err := gather(rightPieces, b, "right", maxRows)
		if err != nil {
			return err
		}
		res, err := LocalJoin(lb, rb, spec)
		if err != nil {
			return fmt.Errorf("error joining bucket %d: %w", b, err)
		}
		metrics.BucketRows.Observe(float64(res.NumRows()))
		out[b] = res
		return nil
	}, func(b int, p any) error {
		return fmt.Errorf("panic joining bucket %d: %v", b, p)
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().Msgf("joined %d buckets in %s", plan.Buckets, time.Since(st))

	res = &partition.Table{Partitions: out}
	if spec.Indexed {
		res.Index = spec.Keys
	}
	return res, nil
}

// shuffle routes every input partition's rows into plan.Buckets pieces. pieces[p][b] holds the
// rows of input partition p that belong to bucket b.
func shuffle(ctx context.Context, pool *ants.Pool, left, right *partition.Table, plan *partitioner.BucketPlan) (leftPieces, rightPieces [][]*table.Table, err error) {
	nl := left.NumPartitions()
	leftPieces = make([][]*table.Table, nl)
	rightPieces = make([][]*table.Table, right.NumPartitions())

	side := func(i int) (string, *table.Table, [][]*table.Table, int) {
		if i < nl {
			return "left", left.Partitions[i], leftPieces, i
		}
		return "right", right.Partitions[i-nl], rightPieces, i - nl
	}

	err = runStage(ctx, pool, nl+right.NumPartitions(), func(ctx context.Context, i int) error {
		name, part, pieces, p := side(i)
		buckets, err := partitioner.BucketTable(part, plan)
		if err != nil {
			return &ShuffleFailureError{Side: name, Partition: p, Bucket: -1, Err: err}
		}
		pieces[p] = buckets
		metrics.ShuffledRows.WithLabelValues(name).Add(float64(part.NumRows()))
		return nil
	}, func(i int, v any) error {
		name, _, _, p := side(i)
		return &ShuffleFailureError{Side: name, Partition: p, Bucket: -1, Err: fmt.Errorf("panic: %v", v)}
	})
	return leftPieces, rightPieces, err
}

// gather concatenates the pieces of bucket b from every input partition of one side.
func gather(pieces [][]*table.Table, b int, side string, maxRows int) (*table.Table, error) {
	parts := make([]*table.Table, len(pieces))
	rows := 0
	for p := range pieces {
		parts[p] = pieces[p][b]
		rows += parts[p].NumRows()
	}
	if maxRows > 0 && rows > maxRows {
		return nil, &ShuffleFailureError{Side: side, Bucket: b, Err: fmt.Errorf("%w: %d rows, limit %d", ErrBucketTooLarge, rows, maxRows)}
	}
	t, err := table.Concat(parts...)
	if err != nil {
		return nil, &ShuffleFailureError{Side: side, Bucket: b, Err: err}
	}
	return t, nil
}

// runStage submits n tasks to the pool and waits for all of them, which makes each stage a
// barrier. The first failure cancels the stage context so queued tasks return early.
func runStage(ctx context.Context, pool *ants.Pool, n int, task func(ctx context.Context, i int) error, onPanic func(i int, v any) error) error {
	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if stageCtx.Err() != nil {
			break
		}
		i := i
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					fail(onPanic(i, p))
				}
			}()
			if stageCtx.Err() != nil {
				return
			}
			if err := task(stageCtx, i); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(&ShuffleFailureError{Side: "both", Partition: i, Bucket: -1, Err: fmt.Errorf("error in pool.Submit: %w", err)})
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
