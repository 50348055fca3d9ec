package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/icejoin/csvio"
	"github.com/danthegoodman1/icejoin/join"
	"github.com/danthegoodman1/icejoin/partition"
	"github.com/spf13/cobra"
)

type joinFlags struct {
	left, right   string
	on            []string
	how           string
	index         bool
	chunksize     string
	lsuffix       string
	rsuffix       string
	buckets       int
	partitionFunc string
	sort          bool
	out           string
	pattern       string
}

var jf joinFlags

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join two CSV globs and write the result as CSV partitions",
	Example: `  icejoin join --left 'a/*.csv' --right 'b/*.csv' --on x --how left --out result
  icejoin join --left 'a/*.csv' --right 'b/*.csv' --on x,y --index --chunksize "1 kiB" --out result`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := runJoinCmd(cmd.Context(), jf)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&jf.left, "left", "", "glob of the left CSV files")
	f.StringVar(&jf.right, "right", "", "glob of the right CSV files")
	f.StringSliceVar(&jf.on, "on", nil, "key columns")
	f.StringVar(&jf.how, "how", "inner", "inner, left or right")
	f.BoolVar(&jf.index, "index", false, "index join on the key columns instead of a merge")
	f.StringVar(&jf.chunksize, "chunksize", "", "CSV block size such as \"1 kiB\", default CSV_BLOCKSIZE")
	f.StringVar(&jf.lsuffix, "lsuffix", "", "suffix for colliding left columns")
	f.StringVar(&jf.rsuffix, "rsuffix", "", "suffix for colliding right columns")
	f.IntVar(&jf.buckets, "buckets", 0, "shuffle buckets, default the larger partition count")
	f.StringVar(&jf.partitionFunc, "partition-func", "hash", "hash or range")
	f.BoolVar(&jf.sort, "sort", false, "sort output partitions by key")
	f.StringVar(&jf.out, "out", "", "output directory")
	f.StringVar(&jf.pattern, "pattern", "part-*.csv", "output file name pattern, * is the partition number")
	for _, name := range []string{"left", "right", "out"} {
		_ = joinCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(joinCmd)
}

func runJoinCmd(ctx context.Context, jf joinFlags) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	how, err := join.ParseHow(jf.how)
	if err != nil {
		return nil, err
	}
	read := func(side, glob string) (*partition.Table, error) {
		pt, err := csvio.ReadCSV(ctx, glob, csvio.ReadOptions{ChunkSize: jf.chunksize})
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", glob, err)
		}
		if !jf.index || len(jf.on) == 0 {
			return pt, nil
		}
		for _, k := range jf.on {
			if !pt.HasColumn(k) {
				return nil, &join.KeyNotFoundError{Key: k, Side: side}
			}
		}
		return pt.SetIndex(jf.on...)
	}
	left, err := read("left", jf.left)
	if err != nil {
		return nil, err
	}
	right, err := read("right", jf.right)
	if err != nil {
		return nil, err
	}

	opts := join.Options{
		On:            jf.on,
		How:           how,
		LSuffix:       jf.lsuffix,
		RSuffix:       jf.rsuffix,
		Buckets:       jf.buckets,
		PartitionFunc: jf.partitionFunc,
		Sort:          jf.sort,
	}
	var res *partition.Table
	if jf.index {
		res, err = join.Join(ctx, left, right, opts)
	} else {
		res, err = join.Merge(ctx, left, right, opts)
	}
	if err != nil {
		return nil, err
	}

	paths, err := csvio.WriteCSV(ctx, res, jf.out, jf.pattern)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("rows", res.NumRows()).Int("files", len(paths)).Msgf("joined in %s", time.Since(start))
	return paths, nil
}
