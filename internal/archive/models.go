// Package archive records completed pipeline runs.
package archive

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/citytrace/citytrace/internal/pipeline"
)

// Repository errors.
var (
	ErrRunNotFound = errors.New("run not found")
)

// Kind is the pipeline a run came from.
type Kind string

const (
	KindMap         Kind = "map"
	KindTimeSeries  Kind = "timeseries"
	KindNightLights Kind = "nightlights"
	KindWinds       Kind = "winds"
)

// Run is an archived pipeline result. Images are not stored.
type Run struct {
	ID        string
	Kind      Kind
	City      string
	Gas       string
	Start     time.Time
	End       time.Time
	Mode      string
	Title     string
	Bins      []Bin
	Bounds    *Bounds
	CreatedAt time.Time
}

// Bin is one archived time-series value. Value is nil for a gap.
type Bin struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value *float64  `json:"value"`
}

// Bounds is the colour range a map was rendered with.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()[:22]
}

// FromTimeSeries builds a run from a computed series.
func FromTimeSeries(res *pipeline.TimeSeriesResult, now time.Time) *Run {
	bins := make([]Bin, len(res.Bins))
	for i, b := range res.Bins {
		bins[i] = Bin{Label: b.Label, Start: b.Start, End: b.End, Value: b.Value.Ptr()}
	}
	return &Run{
		ID:        NewRunID(),
		Kind:      KindTimeSeries,
		City:      res.City.Name,
		Gas:       string(res.Gas.Gas),
		Start:     res.Range.Start,
		End:       res.Range.End,
		Mode:      string(res.Mode),
		Title:     res.Title(),
		Bins:      bins,
		CreatedAt: now.UTC(),
	}
}

// FromMap builds a run from a rendered map. Gas is empty for night lights.
func FromMap(kind Kind, gas string, res *pipeline.MapResult, now time.Time) *Run {
	return &Run{
		ID:        NewRunID(),
		Kind:      kind,
		City:      res.City.Name,
		Gas:       gas,
		Start:     res.Range.Start,
		End:       res.Range.End,
		Title:     res.Title,
		Bounds:    &Bounds{Min: res.Bounds.Min, Max: res.Bounds.Max},
		CreatedAt: now.UTC(),
	}
}
