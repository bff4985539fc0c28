package response

import (
	"errors"
	"net/http"

	"github.com/citytrace/citytrace/internal/api/middleware"
	"github.com/citytrace/citytrace/internal/api/models"
	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/overlay"
	"github.com/citytrace/citytrace/internal/palette"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/regionstats"
	"github.com/citytrace/citytrace/internal/timeseries"
	"github.com/citytrace/citytrace/internal/xgas"
)

// ProblemFor maps a domain error onto a problem. Caller mistakes are 400
// and missing imagery or runs are 404. Upstream values that cannot be
// converted are 502, gateway failures 503. Anything else, including layers
// that do not line up, is a 500 without the error text.
func ProblemFor(err error, traceID string) *models.Problem {
	switch {
	case errors.Is(err, geo.ErrUnknownCity),
		errors.Is(err, geo.ErrInvalidDateRange),
		errors.Is(err, xgas.ErrUnknownGas),
		errors.Is(err, timeseries.ErrInvalidMode),
		errors.Is(err, regionstats.ErrInvalidPercentiles),
		errors.Is(err, overlay.ErrInvalidLayer),
		errors.Is(err, palette.ErrInvalidPalette):
		return models.NewBadRequest(traceID, err.Error(), nil)
	case errors.Is(err, imagery.ErrNoData):
		return models.NewNoData(traceID, err.Error())
	case errors.Is(err, archive.ErrRunNotFound):
		return models.NewNotFound(traceID, "run not found")
	case errors.Is(err, xgas.ErrInvalidInput):
		return models.NewBadGateway(traceID, err.Error())
	case errors.Is(err, resilience.ErrCircuitOpen):
		return models.NewServiceUnavailable(traceID, "imagery gateway is temporarily unavailable")
	case errors.Is(err, imagery.ErrRemoteService):
		return models.NewServiceUnavailable(traceID, "imagery gateway request failed")
	default:
		return models.NewInternalError(traceID, "an unexpected error occurred")
	}
}

// FromError writes the problem for err.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, ProblemFor(err, middleware.GetRequestID(r.Context())))
}
