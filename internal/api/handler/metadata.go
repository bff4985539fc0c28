package handler

import (
	"net/http"

	"github.com/citytrace/citytrace/internal/api/models"
	"github.com/citytrace/citytrace/internal/api/response"
	"github.com/citytrace/citytrace/internal/pipeline"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	pipeline *pipeline.Service
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(p *pipeline.Service) *MetadataHandler {
	return &MetadataHandler{pipeline: p}
}

// ListCities handles GET /v1/metadata/cities.
func (h *MetadataHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities := h.pipeline.Cities()
	out := models.CityList{
		Items:             make([]models.City, len(cities)),
		UnknownCityPolicy: string(h.pipeline.UnknownCityPolicy()),
	}
	for i, c := range cities {
		out.Items[i] = models.City{Name: c.Name, Lat: c.Point.Lat, Lon: c.Point.Lon}
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, out)
}

// ListGases handles GET /v1/metadata/gases.
func (h *MetadataHandler) ListGases(w http.ResponseWriter, r *http.Request) {
	gases := h.pipeline.Gases()
	out := models.GasList{Items: make([]models.Gas, len(gases))}
	for i, g := range gases {
		out.Items[i] = models.Gas{
			ID:                  string(g.Gas),
			Label:               g.Label,
			Collection:          g.Column.Collection,
			Band:                g.Column.Band,
			WaterVaporCorrected: g.WaterVapor != nil,
			Palette:             g.Palette,
		}
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, out)
}
