package http_server

import (
	"context"
	"net/http"
	"time"

	"github.com/danthegoodman1/icejoin/utils"
	"github.com/rs/zerolog"
)

type (
	InsertReqBody struct {
		Name string `validate:"required"`
		TableInput
		// How many seconds before the insert will time out.
		//
		// Default `60`.
		MaxRuntimeSec *int64
	}

	InsertStats struct {
		Name     string
		NumRows  int64
		NumFiles int64
		TimeMS   int64
	}
)

// InsertHandler stores inline rows as a dataset, replacing any dataset of the same name.
func (s *HTTPServer) InsertHandler(c *CustomContext) error {
	if s.Datasets == nil {
		return c.String(http.StatusNotImplemented, "datasets are disabled")
	}
	var reqBody InsertReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Op("insert"), time.Second*time.Duration(utils.Deref(reqBody.MaxRuntimeSec, 60)))
	defer cancel()

	start := time.Now()
	pt, err := reqBody.Partitioned()
	if err != nil {
		return c.RespondError(err, "error reading rows")
	}
	if _, err = s.Datasets.Save(ctx, reqBody.Name, pt); err != nil {
		return c.RespondError(err, "error saving dataset")
	}

	stats := InsertStats{
		Name:     reqBody.Name,
		NumRows:  int64(pt.NumRows()),
		NumFiles: int64(pt.NumPartitions()),
		TimeMS:   time.Since(start).Milliseconds(),
	}
	zerolog.Ctx(ctx).Debug().Interface("stats", stats).Msg("inserted dataset")
	return c.JSON(http.StatusOK, stats)
}
