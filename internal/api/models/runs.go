package models

// Run is an archived pipeline result.
type Run struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	City      string          `json:"city"`
	Gas       string          `json:"gas,omitempty"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Mode      string          `json:"mode,omitempty"`
	Title     string          `json:"title"`
	Bins      []TimeSeriesBin `json:"bins,omitempty"`
	Bounds    *Bounds         `json:"bounds,omitempty"`
	CreatedAt Timestamp       `json:"createdAt"`
}

// PagedRuns is returned by GET /v1/runs.
type PagedRuns struct {
	Items []Run             `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
