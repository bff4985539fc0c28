// Package pipeline runs the gas and night-lights workflows for a city:
// fetch regional imagery, convert column densities and render maps or series.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/overlay"
	"github.com/citytrace/citytrace/internal/palette"
	"github.com/citytrace/citytrace/internal/raster"
	"github.com/citytrace/citytrace/internal/regionstats"
	"github.com/citytrace/citytrace/internal/timeseries"
	"github.com/citytrace/citytrace/internal/wind"
	"github.com/citytrace/citytrace/internal/xgas"
)

const tracerName = "github.com/citytrace/citytrace/internal/pipeline"

// ServiceConfig holds configuration for the pipeline.
type ServiceConfig struct {
	// Imagery is the gateway. Required.
	Imagery imagery.Service

	// Gases defaults to xgas.DefaultProfiles.
	Gases *xgas.Registry

	// Gazetteer defaults to the Indian city table with the reject policy.
	Gazetteer *geo.Gazetteer

	// Constants defaults to xgas.DefaultConstants.
	Constants *xgas.Constants

	// RadiusMeters around the city center (default: 50 km).
	RadiusMeters float64

	// ModePolicy picks time-series binning (default: the seasonal heuristic).
	ModePolicy timeseries.ModePolicy

	// Concurrency of per-bin fetches (default: 1).
	Concurrency int

	// Dimensions of raster requests (default: imagery.DefaultDimensions).
	Dimensions int

	NightLights *NightLightsProfile

	// Winds defaults to DefaultWinds.
	Winds *WindProfile

	Metrics *Metrics
	Logger  zerolog.Logger
}

// Service runs pipelines against an imagery gateway. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	imagery     imagery.Service
	gases       *xgas.Registry
	gazetteer   *geo.Gazetteer
	constants   xgas.Constants
	radius      float64
	policy      timeseries.ModePolicy
	concurrency int
	dimensions  int
	nightLights NightLightsProfile
	winds       WindProfile
	metrics     *Metrics
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewService creates a pipeline service.
func NewService(cfg ServiceConfig) *Service {
	gases := cfg.Gases
	if gases == nil {
		gases = xgas.NewRegistry(nil)
	}

	gazetteer := cfg.Gazetteer
	if gazetteer == nil {
		gazetteer = geo.NewGazetteer(geo.GazetteerConfig{})
	}

	constants := xgas.DefaultConstants()
	if cfg.Constants != nil {
		constants = *cfg.Constants
	}

	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = geo.DefaultRadiusMeters
	}

	policy := cfg.ModePolicy
	if policy == nil {
		policy = timeseries.DefaultHeuristic()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = imagery.DefaultDimensions
	}

	nightLights := DefaultNightLights
	if cfg.NightLights != nil {
		nightLights = *cfg.NightLights
	}

	winds := DefaultWinds
	if cfg.Winds != nil {
		winds = *cfg.Winds
	}
	if winds.GridSize <= 0 {
		winds.GridSize = wind.DefaultGridSize
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Service{
		imagery:     cfg.Imagery,
		gases:       gases,
		gazetteer:   gazetteer,
		constants:   constants,
		radius:      radius,
		policy:      policy,
		concurrency: concurrency,
		dimensions:  dimensions,
		nightLights: nightLights,
		winds:       winds,
		metrics:     metrics,
		logger:      cfg.Logger.With().Str("component", "pipeline").Logger(),
		tracer:      otel.Tracer(tracerName),
	}
}

// Cities returns the known cities in name order.
func (s *Service) Cities() []geo.City {
	return s.gazetteer.Cities()
}

// Gases returns the configured gas profiles in name order.
func (s *Service) Gases() []xgas.Profile {
	ids := s.gases.Gases()
	out := make([]xgas.Profile, 0, len(ids))
	for _, id := range ids {
		p, _ := s.gases.Lookup(string(id))
		out = append(out, p)
	}
	return out
}

// UnknownCityPolicy reports how unknown city names are handled.
func (s *Service) UnknownCityPolicy() geo.UnknownCityPolicy {
	return s.gazetteer.Policy()
}

// Resolve looks up a city and a gas profile.
func (s *Service) Resolve(city, gas string) (geo.City, xgas.Profile, error) {
	c, err := s.gazetteer.Lookup(city)
	if err != nil {
		return geo.City{}, xgas.Profile{}, err
	}
	p, err := s.gases.Lookup(gas)
	if err != nil {
		return geo.City{}, xgas.Profile{}, err
	}
	return c, p, nil
}

// Query builds the imagery query for a city and range.
func (s *Service) Query(c geo.City, r geo.DateRange) imagery.Query {
	return imagery.Query{Region: geo.NewBufferedRegion(c.Point, s.radius), Range: r}
}

// Sample fetches the regional means needed to convert gas p. Empty
// collections or null means yield imagery.ErrNoData.
func (s *Service) Sample(ctx context.Context, p xgas.Profile, q imagery.Query) (xgas.ColumnDensitySample, error) {
	sources := []xgas.BandSource{p.Column, xgas.SurfacePressure}
	if p.WaterVapor != nil {
		sources = append(sources, *p.WaterVapor)
	}

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if seen[src.Collection] {
			continue
		}
		seen[src.Collection] = true

		n, err := s.imagery.CollectionSize(ctx, src.Collection, q)
		if err != nil {
			return xgas.ColumnDensitySample{}, err
		}
		if n == 0 {
			return xgas.ColumnDensitySample{}, fmt.Errorf("%w: %s is empty", imagery.ErrNoData, src.Collection)
		}
	}

	gas, err := s.mean(ctx, p.Column, q, p.Scale)
	if err != nil {
		return xgas.ColumnDensitySample{}, err
	}
	pressure, err := s.mean(ctx, xgas.SurfacePressure, q, p.Scale)
	if err != nil {
		return xgas.ColumnDensitySample{}, err
	}

	sample := xgas.ColumnDensitySample{Gas: gas, SurfacePressure: pressure}
	if p.WaterVapor != nil {
		h2o, err := s.mean(ctx, *p.WaterVapor, q, p.Scale)
		if err != nil {
			return xgas.ColumnDensitySample{}, err
		}
		sample = sample.WithWaterVapor(h2o)
	}
	return sample, nil
}

func (s *Service) mean(ctx context.Context, band xgas.BandSource, q imagery.Query, scale float64) (float64, error) {
	stats, err := s.imagery.Reduce(ctx, imagery.ReduceRequest{
		Field:   imagery.BandField(band),
		Query:   q,
		Reducer: imagery.ReducerMean,
		Scale:   scale,
	})
	if err != nil {
		return 0, fmt.Errorf("mean %s: %w", band.Band, err)
	}
	return stats.Value(imagery.KeyMean)
}

// MixingRatio returns the regional mean mixing ratio of p over q. A query
// without imagery yields a missing value rather than an error.
func (s *Service) MixingRatio(ctx context.Context, p xgas.Profile, q imagery.Query) (xgas.MixingRatio, error) {
	sample, err := s.Sample(ctx, p, q)
	if errors.Is(err, imagery.ErrNoData) {
		return xgas.Missing(), nil
	}
	if err != nil {
		return xgas.Missing(), err
	}

	ppb, err := xgas.Convert(sample, s.constants)
	if err != nil {
		return xgas.Missing(), err
	}
	return xgas.Present(ppb), nil
}

// TimeSeries bins the request range and fills every bin with the regional
// mixing ratio, rounded to three decimals.
func (s *Service) TimeSeries(ctx context.Context, req TimeSeriesRequest) (*TimeSeriesResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.TimeSeries", trace.WithAttributes(
		attribute.String("city", req.City),
		attribute.String("gas", req.Gas),
	))
	defer span.End()

	city, profile, err := s.Resolve(req.City, req.Gas)
	if err != nil {
		return nil, s.fail(span, "timeseries", err)
	}

	policy := s.policy
	if req.Mode != "" {
		if policy, err = timeseries.ParsePolicy(req.Mode); err != nil {
			return nil, s.fail(span, "timeseries", err)
		}
	}
	mode := policy.Select(req.Range)
	span.SetAttributes(attribute.String("mode", string(mode)))

	bins, err := timeseries.BinRange(req.Range, mode)
	if err != nil {
		return nil, s.fail(span, "timeseries", err)
	}

	gasLabel := string(profile.Gas)
	fetch := func(ctx context.Context, bin timeseries.TimeBin) (xgas.MixingRatio, error) {
		v, err := s.MixingRatio(ctx, profile, s.Query(city, bin.Range()))
		if err != nil {
			return v, err
		}
		s.metrics.BinsFetched.WithLabelValues(gasLabel).Inc()
		if !v.Valid {
			s.metrics.BinsMissing.WithLabelValues(gasLabel).Inc()
			return v, nil
		}
		return xgas.Present(xgas.Round3(v.Value)), nil
	}

	bins, err = timeseries.Populate(ctx, bins, fetch, timeseries.PopulateOptions{
		Concurrency: s.concurrency,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, s.fail(span, "timeseries", err)
	}

	result := &TimeSeriesResult{City: city, Gas: profile, Range: req.Range, Mode: mode, Bins: bins}
	s.logger.Info().
		Str("city", city.Name).
		Str("gas", gasLabel).
		Str("mode", string(mode)).
		Int("bins", len(bins)).
		Int("missing", result.Missing()).
		Msg("time series computed")
	return result, nil
}

// Map renders the gas concentration map, optionally overlaid with lit areas.
func (s *Service) Map(ctx context.Context, req MapRequest) (*MapResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.Map", trace.WithAttributes(
		attribute.String("city", req.City),
		attribute.String("gas", req.Gas),
	))
	defer span.End()

	city, profile, err := s.Resolve(req.City, req.Gas)
	if err != nil {
		return nil, s.fail(span, "map", err)
	}
	pal, err := palette.Parse(profile.Palette)
	if err != nil {
		return nil, s.fail(span, "map", err)
	}

	q := s.Query(city, req.Range)
	field := imagery.MixingRatioField(profile, s.constants)

	bounds, err := regionstats.Bounds(ctx, s.imagery, regionstats.Request{Field: field, Query: q, Scale: profile.Scale}, req.Stretch)
	if err != nil {
		return nil, s.fail(span, "map", err)
	}

	grid, err := s.imagery.Raster(ctx, imagery.RasterRequest{Field: field, Query: q, Scale: profile.Scale, Dimensions: s.dimensions})
	if err != nil {
		return nil, s.fail(span, "map", err)
	}

	base := overlay.BaseLayer{Grid: grid, Palette: pal, Bounds: bounds}

	var (
		maskLayer *overlay.MaskLayer
		masked    int
	)
	if req.Mask != nil {
		ntl, err := s.imagery.Raster(ctx, imagery.RasterRequest{
			Field:      imagery.BandField(s.nightLights.Band),
			Query:      q,
			Scale:      s.nightLights.Scale,
			Dimensions: s.dimensions,
		})
		if err != nil {
			return nil, s.fail(span, "map", fmt.Errorf("night lights: %w", err))
		}
		mask := overlay.Threshold(ntl, req.Mask.Threshold)
		layer := overlay.NewMaskLayer(mask).WithOpacity(req.Mask.Opacity)
		maskLayer = &layer
		masked = mask.Count()
	}

	composite, err := overlay.Compose(base, maskLayer)
	if err != nil {
		return nil, s.fail(span, "map", err)
	}

	title := MapTitle(profile.Label, city.Name, req.Range, req.Mask != nil)
	img, err := overlay.Render(composite, overlay.RenderOptions{
		Width:         req.Width,
		Title:         title,
		Colorbar:      true,
		ColorbarLabel: profile.Label + " Concentration (ppb)",
	})
	if err != nil {
		return nil, s.fail(span, "map", err)
	}

	s.metrics.Renders.WithLabelValues("map").Inc()
	s.logger.Info().
		Str("city", city.Name).
		Str("gas", string(profile.Gas)).
		Float64("min", bounds.Min).
		Float64("max", bounds.Max).
		Int("masked_pixels", masked).
		Msg("map rendered")

	return &MapResult{
		City:         city,
		Title:        title,
		Range:        req.Range,
		Bounds:       bounds,
		MaskedPixels: masked,
		Image:        img,
	}, nil
}

// NightLights renders the night-time-lights map for half a year.
func (s *Service) NightLights(ctx context.Context, req NightLightsRequest) (*MapResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.NightLights", trace.WithAttributes(
		attribute.String("city", req.City),
		attribute.Int("year", req.Year),
	))
	defer span.End()

	city, err := s.gazetteer.Lookup(req.City)
	if err != nil {
		return nil, s.fail(span, "nightlights", err)
	}
	r, err := geo.HalfYearRange(req.Year, req.HalfYear)
	if err != nil {
		return nil, s.fail(span, "nightlights", err)
	}
	pal, err := palette.Parse(s.nightLights.Palette)
	if err != nil {
		return nil, s.fail(span, "nightlights", err)
	}

	q := s.Query(city, r)
	field := imagery.BandField(s.nightLights.Band)

	bounds, err := regionstats.Summarize(ctx, s.imagery, regionstats.Request{Field: field, Query: q, Scale: s.nightLights.Scale})
	if err != nil {
		return nil, s.fail(span, "nightlights", err)
	}

	grid, err := s.imagery.Raster(ctx, imagery.RasterRequest{Field: field, Query: q, Scale: s.nightLights.Scale, Dimensions: s.dimensions})
	if err != nil {
		return nil, s.fail(span, "nightlights", err)
	}

	composite, err := overlay.Compose(overlay.BaseLayer{Grid: grid, Palette: pal, Bounds: bounds}, nil)
	if err != nil {
		return nil, s.fail(span, "nightlights", err)
	}

	title := fmt.Sprintf("NTL around %s in %d", city.Name, req.Year)
	img, err := overlay.Render(composite, overlay.RenderOptions{
		Width:         req.Width,
		Title:         title,
		Colorbar:      true,
		ColorbarLabel: "NTL radiance (nW/cm2/sr)",
	})
	if err != nil {
		return nil, s.fail(span, "nightlights", err)
	}

	s.metrics.Renders.WithLabelValues("nightlights").Inc()
	s.logger.Info().Str("city", city.Name).Int("year", req.Year).Str("half", req.HalfYear).Msg("night lights rendered")

	return &MapResult{City: city, Title: title, Range: r, Bounds: bounds, Image: img}, nil
}

// Winds renders the mean wind direction over the city as a grid of arrows
// on a wind-speed map.
func (s *Service) Winds(ctx context.Context, req WindsRequest) (*WindsResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.Winds", trace.WithAttributes(
		attribute.String("city", req.City),
	))
	defer span.End()

	city, err := s.gazetteer.Lookup(req.City)
	if err != nil {
		return nil, s.fail(span, "winds", err)
	}
	pal, err := palette.Parse(s.winds.Palette)
	if err != nil {
		return nil, s.fail(span, "winds", err)
	}

	q := s.Query(city, req.Range)
	components := make([]*raster.Grid, 2)
	for i, band := range []xgas.BandSource{s.winds.U, s.winds.V} {
		components[i], err = s.imagery.Raster(ctx, imagery.RasterRequest{
			Field:      imagery.BandField(band),
			Query:      q,
			Scale:      s.winds.Scale,
			Dimensions: s.winds.GridSize,
		})
		if err != nil {
			return nil, s.fail(span, "winds", fmt.Errorf("%s: %w", band.Band, err))
		}
	}

	field, err := wind.FromComponents(components[0], components[1])
	if err != nil {
		return nil, s.fail(span, "winds", err)
	}
	mean, ok := field.Mean()
	if !ok {
		return nil, s.fail(span, "winds", fmt.Errorf("winds: %w", imagery.ErrNoData))
	}
	lo, hi, _ := field.SpeedRange()
	bounds, err := palette.NewBounds(lo, hi)
	if err != nil {
		return nil, s.fail(span, "winds", err)
	}

	composite, err := overlay.Compose(overlay.BaseLayer{Grid: field.Speed(), Palette: pal, Bounds: bounds}, nil)
	if err != nil {
		return nil, s.fail(span, "winds", err)
	}

	title := WindsTitle(city.Name, req.Range)
	arrows := field.Arrows()
	img, err := overlay.Render(composite, overlay.RenderOptions{
		Width:         req.Width,
		Title:         title,
		Colorbar:      true,
		ColorbarLabel: "Wind speed (m/s)",
		Arrows:        arrows,
	})
	if err != nil {
		return nil, s.fail(span, "winds", err)
	}

	s.metrics.Renders.WithLabelValues("winds").Inc()
	s.logger.Info().
		Str("city", city.Name).
		Float64("direction", mean.Direction()).
		Float64("speed", mean.Speed()).
		Int("arrows", len(arrows)).
		Msg("winds rendered")

	return &WindsResult{
		MapResult: MapResult{City: city, Title: title, Range: req.Range, Bounds: bounds, Image: img},
		Mean:      mean,
		Arrows:    len(arrows),
	}, nil
}

func (s *Service) fail(span trace.Span, operation string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.Failures.WithLabelValues(operation).Inc()
	return err
}
