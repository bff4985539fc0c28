// Package geo provides the geographic primitives used by CityTrace: city
// coordinates, buffered regions around them, and calendar date ranges.
package geo

import (
	"errors"
	"math"
	"time"
)

// Geo errors.
var (
	ErrUnknownCity      = errors.New("unknown city")
	ErrInvalidDateRange = errors.New("invalid date range")
)

// DefaultRadiusMeters is the buffer applied around a city center (50 km).
const DefaultRadiusMeters = 50000

// kmPerDegreeLat is the approximate length of one degree of latitude.
const kmPerDegreeLat = 111.0

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// BufferedRegion is a circular area of interest around a point.
type BufferedRegion struct {
	Center       GeoPoint
	RadiusMeters float64
}

// NewBufferedRegion creates a region around center. A non-positive radius
// uses DefaultRadiusMeters.
func NewBufferedRegion(center GeoPoint, radiusMeters float64) BufferedRegion {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return BufferedRegion{Center: center, RadiusMeters: radiusMeters}
}

// BoundingBox is an axis-aligned box in degrees.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Bounds returns the bounding rectangle of the region.
// Longitude span is widened by 1/cos(lat).
func (r BufferedRegion) Bounds() BoundingBox {
	radiusKm := r.RadiusMeters / 1000
	dLat := radiusKm / kmPerDegreeLat
	dLon := radiusKm / (kmPerDegreeLat * math.Cos(r.Center.Lat*math.Pi/180))

	return BoundingBox{
		MinLon: r.Center.Lon - dLon,
		MinLat: r.Center.Lat - dLat,
		MaxLon: r.Center.Lon + dLon,
		MaxLat: r.Center.Lat + dLat,
	}
}

// Extent is an image extent as [left, right, bottom, top] in degrees.
type Extent [4]float64

// Extent returns the box as an image extent.
func (b BoundingBox) Extent() Extent {
	return Extent{b.MinLon, b.MaxLon, b.MinLat, b.MaxLat}
}

// Equal reports whether both extents match within tol degrees.
func (e Extent) Equal(other Extent, tol float64) bool {
	for i := range e {
		if math.Abs(e[i]-other[i]) > tol {
			return false
		}
	}
	return true
}

// Ring returns the closed polygon ring of the box as [lon, lat] pairs.
func (b BoundingBox) Ring() [][2]float64 {
	return [][2]float64{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}
}

// DateRange is an inclusive calendar range. Start is never after End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns End minus Start in whole days.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

// Contains reports whether d lies inside the range, inclusive on both ends.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}
