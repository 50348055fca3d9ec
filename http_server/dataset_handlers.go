package http_server

import (
	"context"
	"net/http"
	"time"

	"github.com/danthegoodman1/icejoin/metastore"
	"github.com/rs/zerolog"
)

type (
	column struct {
		Name string
		// int, float or string
		Type string
	}

	DatasetInfo struct {
		Name       string
		ID         string
		Columns    []column
		Index      []string `json:",omitempty"`
		Partitions []metastore.PartitionFile `json:",omitempty"`
		NumRows    int64
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	DatasetJoinReqBody struct {
		Left  string `validate:"required"`
		Right string `validate:"required"`
		// Index join on the datasets' index instead of a merge
		Index bool
		JoinOptions
		// Store the result as a dataset with this name instead of returning the rows
		SaveAs string
	}
)

func toInfo(ds metastore.Dataset, parts []metastore.PartitionFile) DatasetInfo {
	info := DatasetInfo{
		Name:       ds.Name,
		ID:         ds.ID,
		Index:      ds.Index,
		Partitions: parts,
		NumRows:    metastore.NumRows(parts),
		CreatedAt:  ds.CreatedAt,
		UpdatedAt:  ds.UpdatedAt,
	}
	for _, f := range ds.Columns {
		info.Columns = append(info.Columns, column{Name: f.Name, Type: string(f.Type)})
	}
	return info
}

func (s *HTTPServer) ListDatasetsHandler(c *CustomContext) error {
	if s.Datasets == nil {
		return c.String(http.StatusNotImplemented, "datasets are disabled")
	}
	all, err := s.Datasets.List(c.Request().Context())
	if err != nil {
		return c.RespondError(err, "error listing datasets")
	}
	infos := make([]DatasetInfo, 0, len(all))
	for _, ds := range all {
		infos = append(infos, toInfo(ds, nil))
	}
	return c.JSON(http.StatusOK, infos)
}

func (s *HTTPServer) GetDatasetHandler(c *CustomContext) error {
	if s.Datasets == nil {
		return c.String(http.StatusNotImplemented, "datasets are disabled")
	}
	ctx := c.Request().Context()
	name := c.Param("name")
	ds, err := s.Datasets.Meta.GetDataset(ctx, name)
	if err != nil {
		return c.RespondError(err, "error getting dataset")
	}
	parts, err := s.Datasets.Meta.ListPartitions(ctx, name)
	if err != nil {
		return c.RespondError(err, "error listing partitions")
	}
	return c.JSON(http.StatusOK, toInfo(ds, parts))
}

func (s *HTTPServer) DeleteDatasetHandler(c *CustomContext) error {
	if s.Datasets == nil {
		return c.String(http.StatusNotImplemented, "datasets are disabled")
	}
	if err := s.Datasets.Delete(c.Request().Context(), c.Param("name")); err != nil {
		return c.RespondError(err, "error deleting dataset")
	}
	return c.NoContent(http.StatusNoContent)
}

// DatasetJoinHandler joins two stored datasets, optionally storing the result.
func (s *HTTPServer) DatasetJoinHandler(c *CustomContext) error {
	if s.Datasets == nil {
		return c.String(http.StatusNotImplemented, "datasets are disabled")
	}
	var reqBody DatasetJoinReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	op := "dataset_merge"
	if reqBody.Index {
		op = "dataset_join"
	}
	ctx, cancel := context.WithTimeout(c.Op(op), reqBody.timeout())
	defer cancel()
	logger := zerolog.Ctx(ctx)

	start := time.Now()
	opts, err := reqBody.options()
	if err != nil {
		return c.RespondError(err, "error parsing join options")
	}
	left, err := s.Datasets.Load(ctx, reqBody.Left)
	if err != nil {
		return c.RespondError(err, "error loading left dataset")
	}
	right, err := s.Datasets.Load(ctx, reqBody.Right)
	if err != nil {
		return c.RespondError(err, "error loading right dataset")
	}
	logger.Debug().Msgf("loaded datasets in %s", time.Since(start))

	res, err := runJoin(ctx, reqBody.Index, left, right, opts)
	if err != nil {
		return c.RespondError(err, "error joining datasets")
	}

	stats := JoinStats{NumRows: res.NumRows()}
	if reqBody.SaveAs != "" {
		if _, err = s.Datasets.Save(ctx, reqBody.SaveAs, res); err != nil {
			return c.RespondError(err, "error saving join result")
		}
		stats.SavedAs = reqBody.SaveAs
	} else {
		if stats.Result, err = toOutput(res); err != nil {
			return c.InternalError(err, "error building response")
		}
	}
	stats.TimeMS = time.Since(start).Milliseconds()
	return c.JSON(http.StatusOK, stats)
}
