package geo

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownCityPolicy decides what Lookup does with a name missing from the table.
type UnknownCityPolicy string

const (
	// PolicyReject returns ErrUnknownCity.
	PolicyReject UnknownCityPolicy = "reject"

	// PolicyFallback returns the gazetteer's default city.
	PolicyFallback UnknownCityPolicy = "fallback"
)

// ParseUnknownCityPolicy parses a policy name.
func ParseUnknownCityPolicy(s string) (UnknownCityPolicy, error) {
	switch UnknownCityPolicy(strings.ToLower(s)) {
	case PolicyReject:
		return PolicyReject, nil
	case PolicyFallback:
		return PolicyFallback, nil
	default:
		return "", fmt.Errorf("unknown city policy %q", s)
	}
}

// City is a named location.
type City struct {
	Name  string
	Point GeoPoint
}

// DefaultCity is used by PolicyFallback.
var DefaultCity = City{Name: "Chennai", Point: GeoPoint{Lat: 13.0827, Lon: 80.2707}}

// Gazetteer resolves city names to coordinates from a static table.
type Gazetteer struct {
	cities   map[string]City
	policy   UnknownCityPolicy
	fallback City
}

// GazetteerConfig holds configuration for a Gazetteer.
type GazetteerConfig struct {
	// Cities overrides the built-in table when non-empty.
	Cities []City

	// Policy for unknown names (default: PolicyReject).
	Policy UnknownCityPolicy

	// Fallback city for PolicyFallback (default: DefaultCity).
	Fallback *City
}

// NewGazetteer creates a Gazetteer.
func NewGazetteer(cfg GazetteerConfig) *Gazetteer {
	cities := cfg.Cities
	if len(cities) == 0 {
		cities = IndianCities()
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyReject
	}
	fallback := DefaultCity
	if cfg.Fallback != nil {
		fallback = *cfg.Fallback
	}

	g := &Gazetteer{
		cities:   make(map[string]City, len(cities)),
		policy:   policy,
		fallback: fallback,
	}
	for _, c := range cities {
		g.cities[normalize(c.Name)] = c
	}
	return g
}

// Lookup resolves a city name, case-insensitively.
func (g *Gazetteer) Lookup(name string) (City, error) {
	if c, ok := g.cities[normalize(name)]; ok {
		return c, nil
	}
	if g.policy == PolicyFallback {
		return g.fallback, nil
	}
	return City{}, fmt.Errorf("%w: %q", ErrUnknownCity, name)
}

// Policy returns the configured unknown-city policy.
func (g *Gazetteer) Policy() UnknownCityPolicy {
	return g.policy
}

// Cities returns all cities sorted by name.
func (g *Gazetteer) Cities() []City {
	out := make([]City, 0, len(g.cities))
	for _, c := range g.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IndianCities returns the built-in city table.
func IndianCities() []City {
	return []City{
		{Name: "Mumbai", Point: GeoPoint{Lat: 19.076090, Lon: 72.877426}},
		{Name: "Delhi", Point: GeoPoint{Lat: 28.704060, Lon: 77.102493}},
		{Name: "Chennai", Point: GeoPoint{Lat: 13.082680, Lon: 80.270718}},
		{Name: "Kolkata", Point: GeoPoint{Lat: 22.572646, Lon: 88.363895}},
		{Name: "Bangalore", Point: GeoPoint{Lat: 12.971599, Lon: 77.594566}},
		{Name: "Pune", Point: GeoPoint{Lat: 18.520430, Lon: 73.856743}},
		{Name: "Ahmedabad", Point: GeoPoint{Lat: 23.022505, Lon: 72.571365}},
		{Name: "Surat", Point: GeoPoint{Lat: 21.170240, Lon: 72.831062}},
		{Name: "Agra", Point: GeoPoint{Lat: 27.176670, Lon: 78.008072}},
		{Name: "Chandigarh", Point: GeoPoint{Lat: 30.733315, Lon: 76.779419}},
		{Name: "Asansol", Point: GeoPoint{Lat: 23.683333, Lon: 86.983333}},
		{Name: "Moradabad", Point: GeoPoint{Lat: 28.838686, Lon: 78.773331}},
		{Name: "Muzaffarpur", Point: GeoPoint{Lat: 26.120886, Lon: 85.364720}},
		{Name: "Patna", Point: GeoPoint{Lat: 25.594095, Lon: 85.137566}},
		{Name: "Agartala", Point: GeoPoint{Lat: 23.831457, Lon: 91.286778}},
		{Name: "Bhopal", Point: GeoPoint{Lat: 23.259933, Lon: 77.412613}},
		{Name: "Rourkela", Point: GeoPoint{Lat: 22.260423, Lon: 84.853584}},
		{Name: "Jodhpur", Point: GeoPoint{Lat: 26.238947, Lon: 73.024309}},
		{Name: "Indore", Point: GeoPoint{Lat: 22.719568, Lon: 75.857727}},
		{Name: "Hyderabad", Point: GeoPoint{Lat: 17.3850, Lon: 78.4867}},
	}
}
