package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/citytrace/citytrace/internal/api/middleware"
	"github.com/citytrace/citytrace/internal/api/models"
	"github.com/citytrace/citytrace/internal/api/response"
	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/overlay"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/regionstats"
	"github.com/citytrace/citytrace/internal/timeseries"
)

// RenderHandlerConfig configures a RenderHandler.
type RenderHandlerConfig struct {
	Pipeline *pipeline.Service

	// Archive, when set, records every successful run.
	Archive archive.Repository

	// Stretch is used when a map request does not name one.
	Stretch regionstats.Method

	// Mask fills unset mask fields on map requests. Nil uses
	// pipeline.DefaultMaskOptions.
	Mask *pipeline.MaskOptions

	Logger zerolog.Logger
	Now    func() time.Time
}

// RenderHandler serves the map, night-lights and time-series endpoints.
type RenderHandler struct {
	pipeline *pipeline.Service
	archive  archive.Repository
	stretch  regionstats.Method
	mask     pipeline.MaskOptions
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRenderHandler creates a RenderHandler.
func NewRenderHandler(cfg RenderHandlerConfig) *RenderHandler {
	stretch := cfg.Stretch
	if stretch == "" {
		stretch = regionstats.MethodMinMax
	}
	mask := pipeline.DefaultMaskOptions()
	if cfg.Mask != nil {
		mask = *cfg.Mask
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RenderHandler{
		pipeline: cfg.Pipeline,
		archive:  cfg.Archive,
		stretch:  stretch,
		mask:     mask,
		logger:   cfg.Logger.With().Str("component", "render_handler").Logger(),
		now:      now,
	}
}

// RenderMap handles POST /v1/maps:render. The PNG is returned directly
// unless the client asks for JSON.
func (h *RenderHandler) RenderMap(w http.ResponseWriter, r *http.Request) {
	var input models.MapRenderRequest
	if !decode(w, r, &input) {
		return
	}

	dates, err := geo.ParseDateRange(input.StartDate, input.EndDate)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	req := pipeline.MapRequest{
		City:    input.City,
		Gas:     input.Gas,
		Range:   dates,
		Stretch: h.stretch,
		Width:   input.Width,
	}
	if input.Stretch != "" {
		req.Stretch = regionstats.Method(input.Stretch)
	}
	if input.Mask != nil {
		mask := h.mask
		if input.Mask.Threshold != nil {
			mask.Threshold = *input.Mask.Threshold
		}
		if input.Mask.Opacity != nil {
			mask.Opacity = *input.Mask.Opacity
		}
		req.Mask = &mask
	}

	res, err := h.pipeline.Map(r.Context(), req)
	if err != nil {
		h.fail(w, r, "map", err)
		return
	}

	run := archive.FromMap(archive.KindMap, input.Gas, res, h.now())
	h.record(r.Context(), run)

	if wantsJSON(r) {
		h.writeMapJSON(w, r, res, run.ID)
		return
	}

	setRunID(w, run.ID)
	w.Header().Set("X-Map-Title", res.Title)
	w.Header().Set("X-Stretch-Min", strconv.FormatFloat(res.Bounds.Min, 'f', 3, 64))
	w.Header().Set("X-Stretch-Max", strconv.FormatFloat(res.Bounds.Max, 'f', 3, 64))
	response.PNG(w, r, res.Image)
}

// RenderNightLights handles POST /v1/nightlights:render.
func (h *RenderHandler) RenderNightLights(w http.ResponseWriter, r *http.Request) {
	var input models.NightLightsRenderRequest
	if !decode(w, r, &input) {
		return
	}

	half := input.HalfYear
	if half == "" {
		half = geo.HalfJanDec
	}

	res, err := h.pipeline.NightLights(r.Context(), pipeline.NightLightsRequest{
		City:     input.City,
		Year:     input.Year,
		HalfYear: half,
		Width:    input.Width,
	})
	if err != nil {
		h.fail(w, r, "nightlights", err)
		return
	}

	run := archive.FromMap(archive.KindNightLights, "", res, h.now())
	h.record(r.Context(), run)

	h.writeMapJSON(w, r, res, run.ID)
}

// RenderWinds handles POST /v1/winds:render. The PNG is returned directly
// unless the client asks for JSON.
func (h *RenderHandler) RenderWinds(w http.ResponseWriter, r *http.Request) {
	var input models.WindsRenderRequest
	if !decode(w, r, &input) {
		return
	}

	dates, err := geo.ParseDateRange(input.StartDate, input.EndDate)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	res, err := h.pipeline.Winds(r.Context(), pipeline.WindsRequest{
		City:  input.City,
		Range: dates,
		Width: input.Width,
	})
	if err != nil {
		h.fail(w, r, "winds", err)
		return
	}

	run := archive.FromMap(archive.KindWinds, "", &res.MapResult, h.now())
	h.record(r.Context(), run)

	direction := strconv.FormatFloat(res.Mean.Direction(), 'f', 1, 64)
	if !wantsJSON(r) {
		setRunID(w, run.ID)
		w.Header().Set("X-Map-Title", res.Title)
		w.Header().Set("X-Wind-Direction", direction)
		response.PNG(w, r, res.Image)
		return
	}

	data, err := overlay.EncodePNG(res.Image)
	if err != nil {
		h.fail(w, r, "encode", err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.WindsRenderResponse{
		RunID:         run.ID,
		City:          res.City.Name,
		Title:         res.Title,
		StartDate:     res.Range.Start.Format(geo.DateLayout),
		EndDate:       res.Range.End.Format(geo.DateLayout),
		Bounds:        models.Bounds{Min: res.Bounds.Min, Max: res.Bounds.Max},
		MeanDirection: res.Mean.Direction(),
		MeanSpeed:     res.Mean.Speed(),
		Arrows:        res.Arrows,
		Image:         base64.StdEncoding.EncodeToString(data),
	})
}

// ComputeTimeSeries handles POST /v1/timeseries:compute. Clients sending
// Accept: text/html get the chart page instead of JSON.
func (h *RenderHandler) ComputeTimeSeries(w http.ResponseWriter, r *http.Request) {
	var input models.TimeSeriesRequest
	if !decode(w, r, &input) {
		return
	}

	dates, err := geo.ParseDateRange(input.StartDate, input.EndDate)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	res, err := h.pipeline.TimeSeries(r.Context(), pipeline.TimeSeriesRequest{
		City:  input.City,
		Gas:   input.Gas,
		Range: dates,
		Mode:  input.Mode,
	})
	if err != nil {
		h.fail(w, r, "timeseries", err)
		return
	}

	run := archive.FromTimeSeries(res, h.now())
	h.record(r.Context(), run)

	if wantsHTML(r) {
		var buf bytes.Buffer
		err := timeseries.Chart(&buf, res.Bins, timeseries.ChartOptions{
			Title:  res.Title(),
			Series: res.Gas.Label,
			YAxis:  res.Gas.Label + " Concentration (ppb)",
		})
		if err != nil {
			h.fail(w, r, "timeseries", err)
			return
		}
		setRunID(w, run.ID)
		response.HTML(w, r, middleware.ChartContentSecurityPolicy, buf.Bytes())
		return
	}

	response.JSON(w, r, http.StatusOK, timeSeriesResponse(res, run.ID))
}

func (h *RenderHandler) writeMapJSON(w http.ResponseWriter, r *http.Request, res *pipeline.MapResult, runID string) {
	data, err := overlay.EncodePNG(res.Image)
	if err != nil {
		h.fail(w, r, "encode", err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.MapRenderResponse{
		RunID:        runID,
		City:         res.City.Name,
		Title:        res.Title,
		StartDate:    res.Range.Start.Format(geo.DateLayout),
		EndDate:      res.Range.End.Format(geo.DateLayout),
		Bounds:       models.Bounds{Min: res.Bounds.Min, Max: res.Bounds.Max},
		MaskedPixels: res.MaskedPixels,
		Image:        base64.StdEncoding.EncodeToString(data),
	})
}

// record archives a run. Archive failures are logged and never fail the
// request that produced the run.
func (h *RenderHandler) record(ctx context.Context, run *archive.Run) {
	if h.archive == nil {
		run.ID = ""
		return
	}
	if err := h.archive.Create(ctx, run); err != nil {
		h.logger.Warn().Err(err).Str("run_id", run.ID).Str("kind", string(run.Kind)).Msg("failed to archive run")
		run.ID = ""
	}
}

func setRunID(w http.ResponseWriter, id string) {
	if id != "" {
		w.Header().Set("X-Run-Id", id)
	}
}

func (h *RenderHandler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	problem := response.ProblemFor(err, middleware.GetRequestID(r.Context()))
	event := h.logger.Warn()
	if problem.Status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Str("operation", operation).
		Str("request_id", problem.TraceID).
		Int("status", problem.Status).
		Msg("render request failed")
	response.Error(w, r, problem)
}
