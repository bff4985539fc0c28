package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/citytrace/citytrace/internal/api/models"
	"github.com/citytrace/citytrace/internal/api/response"
	"github.com/citytrace/citytrace/internal/archive"
)

// maxListLimit caps the page size of GET /v1/runs.
const maxListLimit = 200

// RunsHandler serves archived runs.
type RunsHandler struct {
	archive archive.Repository
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(repo archive.Repository) *RunsHandler {
	return &RunsHandler{archive: repo}
}

// ListRuns handles GET /v1/runs?limit=&cursor=&city=&gas=&kind=.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := archive.ListOptions{
		Cursor: q.Get("cursor"),
		City:   q.Get("city"),
		Gas:    q.Get("gas"),
		Kind:   archive.Kind(q.Get("kind")),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxListLimit), Code: "range"},
			})
			return
		}
		opts.Limit = limit
	}

	switch opts.Kind {
	case "", archive.KindMap, archive.KindTimeSeries, archive.KindNightLights, archive.KindWinds:
	default:
		response.BadRequest(w, r, "invalid kind", []models.FieldError{
			{Field: "kind", Message: "must be one of: map timeseries nightlights winds", Code: "oneof"},
		})
		return
	}

	result, err := h.archive.List(r.Context(), opts)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	limit := opts.Limit
	if limit == 0 {
		limit = archive.DefaultListLimit
	}
	out := models.PagedRuns{
		Items: make([]models.Run, len(result.Items)),
		Meta:  models.PagedResponseMeta{Limit: limit},
	}
	for i, run := range result.Items {
		out.Items[i] = runResponse(run)
	}
	if result.NextCursor != "" {
		next := result.NextCursor
		out.Meta.NextCursor = &next
	}

	response.JSON(w, r, http.StatusOK, out)
}

// GetRun handles GET /v1/runs/{runId}.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.archive.Get(r.Context(), chi.URLParam(r, "runId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, runResponse(run))
}
