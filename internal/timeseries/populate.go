package timeseries

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/xgas"
)

// ErrNoData is imagery.ErrNoData. A fetch failing with it yields a gap.
var ErrNoData = imagery.ErrNoData

// FetchFunc returns the value for one bin. A missing value or ErrNoData marks
// a gap; any other error aborts the whole series.
type FetchFunc func(ctx context.Context, bin TimeBin) (xgas.MixingRatio, error)

// PopulateOptions tunes Populate.
type PopulateOptions struct {
	// Concurrency bounds parallel fetches. Values below 2 fetch sequentially.
	Concurrency int

	Logger zerolog.Logger
}

// Populate fetches every bin and returns a copy of bins with values set, in
// the original order.
func Populate(ctx context.Context, bins []TimeBin, fetch FetchFunc, opts PopulateOptions) ([]TimeBin, error) {
	out := make([]TimeBin, len(bins))
	copy(out, bins)

	if opts.Concurrency < 2 {
		for i := range out {
			v, err := fetchBin(ctx, fetch, out[i], opts.Logger)
			if err != nil {
				return nil, err
			}
			out[i].Value = v
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range out {
		g.Go(func() error {
			v, err := fetchBin(gctx, fetch, out[i], opts.Logger)
			if err != nil {
				return err
			}
			out[i].Value = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func fetchBin(ctx context.Context, fetch FetchFunc, bin TimeBin, logger zerolog.Logger) (xgas.MixingRatio, error) {
	if err := ctx.Err(); err != nil {
		return xgas.Missing(), err
	}

	v, err := fetch(ctx, bin)
	if errors.Is(err, ErrNoData) {
		logger.Info().Str("bin", bin.Label).Err(err).Msg("no data for bin")
		return xgas.Missing(), nil
	}
	if err != nil {
		return xgas.Missing(), fmt.Errorf("bin %s: %w", bin.Label, err)
	}
	if !v.Valid {
		logger.Info().Str("bin", bin.Label).Msg("no data for bin")
	}
	return v, nil
}
