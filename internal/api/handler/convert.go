package handler

import (
	"github.com/citytrace/citytrace/internal/api/models"
	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/pipeline"
)

func timeSeriesResponse(res *pipeline.TimeSeriesResult, runID string) models.TimeSeriesResponse {
	bins := make([]models.TimeSeriesBin, len(res.Bins))
	for i, b := range res.Bins {
		bins[i] = models.TimeSeriesBin{
			Label:     b.Label,
			StartDate: b.Start.Format(geo.DateLayout),
			EndDate:   b.End.Format(geo.DateLayout),
			Value:     b.Value.Ptr(),
		}
	}
	return models.TimeSeriesResponse{
		RunID:     runID,
		City:      res.City.Name,
		Gas:       string(res.Gas.Gas),
		Mode:      string(res.Mode),
		Title:     res.Title(),
		StartDate: res.Range.Start.Format(geo.DateLayout),
		EndDate:   res.Range.End.Format(geo.DateLayout),
		Unit:      "ppb",
		Missing:   res.Missing(),
		Bins:      bins,
	}
}

func runResponse(run *archive.Run) models.Run {
	out := models.Run{
		ID:        run.ID,
		Kind:      string(run.Kind),
		City:      run.City,
		Gas:       run.Gas,
		StartDate: run.Start.Format(geo.DateLayout),
		EndDate:   run.End.Format(geo.DateLayout),
		Mode:      run.Mode,
		Title:     run.Title,
		CreatedAt: models.Timestamp(run.CreatedAt),
	}
	if run.Bounds != nil {
		out.Bounds = &models.Bounds{Min: run.Bounds.Min, Max: run.Bounds.Max}
	}
	for _, b := range run.Bins {
		out.Bins = append(out.Bins, models.TimeSeriesBin{
			Label:     b.Label,
			StartDate: b.Start.Format(geo.DateLayout),
			EndDate:   b.End.Format(geo.DateLayout),
			Value:     b.Value,
		})
	}
	return out
}
