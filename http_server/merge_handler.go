package http_server

import (
	"context"
	"net/http"
	"time"

	"github.com/danthegoodman1/icejoin/join"
	"github.com/danthegoodman1/icejoin/partition"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/rs/zerolog"
)

type (
	// JoinOptions are the join settings shared by every join endpoint.
	JoinOptions struct {
		// Key columns. An index join defaults to the inputs' index, a merge to the shared columns.
		On []string
		// inner (default), left or right
		How string
		// Suffixes for colliding non-key columns. A merge defaults to `_x` and `_y`.
		LSuffix string
		RSuffix string
		// Number of shuffle buckets, default the larger input partition count
		Buckets int `validate:"gte=0"`
		// hash (default) or range
		PartitionFunc string `validate:"omitempty,oneof=hash range"`
		// Sort output partitions by key
		Sort bool
		// How many seconds before the join will time out.
		//
		// Default `60`.
		MaxRuntimeSec *int64
	}

	JoinReqBody struct {
		Left  TableInput
		Right TableInput
		JoinOptions
	}

	JoinStats struct {
		Result *TableOutput `json:",omitempty"`
		// Set when the result was stored as a dataset
		SavedAs string `json:",omitempty"`
		NumRows int
		TimeMS  int64
	}
)

func (o JoinOptions) options() (join.Options, error) {
	how, err := join.ParseHow(o.How)
	if err != nil {
		return join.Options{}, err
	}
	return join.Options{
		On:            o.On,
		How:           how,
		LSuffix:       o.LSuffix,
		RSuffix:       o.RSuffix,
		Buckets:       o.Buckets,
		PartitionFunc: o.PartitionFunc,
		Sort:          o.Sort,
	}, nil
}

func (o JoinOptions) timeout() time.Duration {
	return time.Second * time.Duration(utils.Deref(o.MaxRuntimeSec, 60))
}

func runJoin(ctx context.Context, indexed bool, left, right *partition.Table, opts join.Options) (*partition.Table, error) {
	if indexed {
		return join.Join(ctx, left, right, opts)
	}
	return join.Merge(ctx, left, right, opts)
}

// JoinHandler joins two inline tables on their index (or On).
func (s *HTTPServer) JoinHandler(c *CustomContext) error {
	return s.inlineJoin(c, true)
}

// MergeHandler joins two inline tables on ordinary columns.
func (s *HTTPServer) MergeHandler(c *CustomContext) error {
	return s.inlineJoin(c, false)
}

func (s *HTTPServer) inlineJoin(c *CustomContext, indexed bool) error {
	var reqBody JoinReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	op := "merge"
	if indexed {
		op = "join"
	}
	ctx, cancel := context.WithTimeout(c.Op(op), reqBody.timeout())
	defer cancel()

	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("running join handler")

	start := time.Now()
	opts, err := reqBody.options()
	if err != nil {
		return c.RespondError(err, "error parsing join options")
	}
	left, err := reqBody.Left.Partitioned()
	if err != nil {
		return c.RespondError(err, "error reading left rows")
	}
	right, err := reqBody.Right.Partitioned()
	if err != nil {
		return c.RespondError(err, "error reading right rows")
	}

	res, err := runJoin(ctx, indexed, left, right, opts)
	if err != nil {
		return c.RespondError(err, "error joining")
	}
	out, err := toOutput(res)
	if err != nil {
		return c.InternalError(err, "error building response")
	}

	stats := JoinStats{
		Result:  out,
		NumRows: out.NumRows,
		TimeMS:  time.Since(start).Milliseconds(),
	}
	logger.Debug().Int("rows", stats.NumRows).Int64("timeMS", stats.TimeMS).Msg("joined")
	return c.JSON(http.StatusOK, stats)
}
