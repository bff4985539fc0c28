package models

// MaskRequest enables the night-lights overlay on a gas map.
type MaskRequest struct {
	// Threshold in nW/cm2/sr. Pixels above it are drawn.
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0"`
	Opacity   *float64 `json:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// MapRenderRequest is the body of POST /v1/maps:render.
type MapRenderRequest struct {
	City      string       `json:"city" validate:"required,max=100"`
	Gas       string       `json:"gas" validate:"required,max=16"`
	StartDate string       `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string       `json:"endDate" validate:"required,datetime=2006-01-02"`
	Stretch   string       `json:"stretch,omitempty" validate:"omitempty,oneof=minmax percentile"`
	Mask      *MaskRequest `json:"mask,omitempty"`
	Width     int          `json:"width,omitempty" validate:"omitempty,gte=64,lte=2048"`
}

// NightLightsRenderRequest is the body of POST /v1/nightlights:render.
type NightLightsRenderRequest struct {
	City     string `json:"city" validate:"required,max=100"`
	Year     int    `json:"year" validate:"required,gte=2012,lte=2100"`
	HalfYear string `json:"halfYear,omitempty" validate:"omitempty,oneof=jan-jun jul-dec jan-dec"`
	Width    int    `json:"width,omitempty" validate:"omitempty,gte=64,lte=2048"`
}

// WindsRenderRequest is the body of POST /v1/winds:render.
type WindsRenderRequest struct {
	City      string `json:"city" validate:"required,max=100"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Width     int    `json:"width,omitempty" validate:"omitempty,gte=64,lte=2048"`
}

// WindsRenderResponse is a rendered wind map. Bounds are speeds in m/s and
// the mean direction is degrees clockwise from north.
type WindsRenderResponse struct {
	RunID         string  `json:"runId,omitempty"`
	City          string  `json:"city"`
	Title         string  `json:"title"`
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate"`
	Bounds        Bounds  `json:"bounds"`
	MeanDirection float64 `json:"meanDirection"`
	MeanSpeed     float64 `json:"meanSpeed"`
	Arrows        int     `json:"arrows"`
	Image         string  `json:"image"`
}

// MapRenderResponse is a rendered map returned as JSON.
type MapRenderResponse struct {
	RunID        string `json:"runId,omitempty"`
	City         string `json:"city"`
	Title        string `json:"title"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Bounds       Bounds `json:"bounds"`
	MaskedPixels int    `json:"maskedPixels"`

	// Image is the base64 encoded PNG.
	Image string `json:"image"`
}

// TimeSeriesRequest is the body of POST /v1/timeseries:compute.
type TimeSeriesRequest struct {
	City      string `json:"city" validate:"required,max=100"`
	Gas       string `json:"gas" validate:"required,max=16"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=auto monthly seasonal"`
}

// TimeSeriesBin is one bin of a computed series. Value is null for a gap.
type TimeSeriesBin struct {
	Label     string   `json:"label"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	Value     *float64 `json:"value"`
}

// TimeSeriesResponse is a computed series in ppb.
type TimeSeriesResponse struct {
	RunID     string          `json:"runId,omitempty"`
	City      string          `json:"city"`
	Gas       string          `json:"gas"`
	Mode      string          `json:"mode"`
	Title     string          `json:"title"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Unit      string          `json:"unit"`
	Missing   int             `json:"missing"`
	Bins      []TimeSeriesBin `json:"bins"`
}
