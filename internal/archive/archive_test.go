package archive_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/palette"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/timeseries"
	"github.com/citytrace/citytrace/internal/xgas"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newRun(id, city, gas string, kind archive.Kind, created time.Time) *archive.Run {
	return &archive.Run{ID: id, Kind: kind, City: city, Gas: gas, CreatedAt: created}
}

func TestFromTimeSeries(t *testing.T) {
	r, err := geo.ParseDateRange("2019-01-01", "2019-12-31")
	require.NoError(t, err)

	bins := timeseries.MonthlyBins(2019)
	bins[0].Value = xgas.Present(101.5)

	profiles := xgas.DefaultProfiles()
	run := archive.FromTimeSeries(&pipeline.TimeSeriesResult{
		City:  geo.City{Name: "Delhi"},
		Gas:   profiles[0],
		Range: r,
		Mode:  timeseries.ModeMonthly,
		Bins:  bins,
	}, t0)

	assert.True(t, strings.HasPrefix(run.ID, "run_"))
	assert.Equal(t, archive.KindTimeSeries, run.Kind)
	assert.Equal(t, "CO", run.Gas)
	assert.Equal(t, "monthly", run.Mode)
	require.Len(t, run.Bins, 12)
	require.NotNil(t, run.Bins[0].Value)
	assert.Equal(t, 101.5, *run.Bins[0].Value)
	assert.Nil(t, run.Bins[1].Value)
	assert.Nil(t, run.Bounds)
}

func TestFromMap(t *testing.T) {
	run := archive.FromMap(archive.KindMap, "NO2", &pipeline.MapResult{
		City:   geo.City{Name: "Pune"},
		Title:  "NO2 Concentration around Pune from 2019-01-01 to 2019-01-31",
		Bounds: palette.Bounds{Min: 1, Max: 2},
	}, t0)

	assert.Equal(t, archive.KindMap, run.Kind)
	require.NotNil(t, run.Bounds)
	assert.Equal(t, 2.0, run.Bounds.Max)
	assert.Equal(t, t0, run.CreatedAt)
}

func TestInMemoryRepository_GetCreate(t *testing.T) {
	repo := archive.NewInMemoryRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "run_missing")
	assert.ErrorIs(t, err, archive.ErrRunNotFound)

	run := newRun("run_a", "Delhi", "CO", archive.KindMap, t0)
	run.Bounds = &archive.Bounds{Min: 1, Max: 2}
	require.NoError(t, repo.Create(ctx, run))

	got, err := repo.Get(ctx, "run_a")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	got.Bounds.Max = 99
	again, err := repo.Get(ctx, "run_a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.Bounds.Max, "stored run is not aliased")
}

func TestInMemoryRepository_List(t *testing.T) {
	repo := archive.NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRun("run_1", "Delhi", "CO", archive.KindMap, t0)))
	require.NoError(t, repo.Create(ctx, newRun("run_2", "Delhi", "NO2", archive.KindTimeSeries, t0.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newRun("run_3", "Mumbai", "CO", archive.KindTimeSeries, t0.Add(2*time.Minute))))
	require.NoError(t, repo.Create(ctx, newRun("run_4", "Delhi", "", archive.KindNightLights, t0.Add(3*time.Minute))))

	all, err := repo.List(ctx, archive.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all.Items, 4)
	assert.Equal(t, "run_4", all.Items[0].ID, "newest first")
	assert.Empty(t, all.NextCursor)

	delhi, err := repo.List(ctx, archive.ListOptions{City: "delhi"})
	require.NoError(t, err)
	assert.Len(t, delhi.Items, 3)

	co, err := repo.List(ctx, archive.ListOptions{Gas: "co", Kind: archive.KindTimeSeries})
	require.NoError(t, err)
	require.Len(t, co.Items, 1)
	assert.Equal(t, "run_3", co.Items[0].ID)

	page1, err := repo.List(ctx, archive.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.Equal(t, "run_3", page1.NextCursor)

	page2, err := repo.List(ctx, archive.ListOptions{Limit: 2, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.Equal(t, "run_2", page2.Items[0].ID)
	assert.Equal(t, "run_1", page2.Items[1].ID)
	assert.Empty(t, page2.NextCursor)
}
