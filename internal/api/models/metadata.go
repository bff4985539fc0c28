package models

// City is a supported city.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// CityList is returned by GET /v1/metadata/cities.
type CityList struct {
	Items             []City `json:"items"`
	UnknownCityPolicy string `json:"unknownCityPolicy"`
}

// Gas describes a supported trace gas.
type Gas struct {
	ID                  string   `json:"id"`
	Label               string   `json:"label"`
	Collection          string   `json:"collection"`
	Band                string   `json:"band"`
	WaterVaporCorrected bool     `json:"waterVaporCorrected"`
	Palette             []string `json:"palette"`
}

// GasList is returned by GET /v1/metadata/gases.
type GasList struct {
	Items []Gas `json:"items"`
}
