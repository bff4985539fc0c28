package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/api/middleware"
	"github.com/citytrace/citytrace/internal/api/models"
	"github.com/citytrace/citytrace/internal/api/response"
	"github.com/citytrace/citytrace/internal/archive"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/overlay"
	"github.com/citytrace/citytrace/internal/palette"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/timeseries"
	"github.com/citytrace/citytrace/internal/xgas"
)

// requestWithContext creates a request that has passed through the
// RequestID middleware.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	return processedReq, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/test")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if requestID := rec.Header().Get("X-Request-Id"); len(requestID) < 10 {
		t.Errorf("expected request ID header, got %q", requestID)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Body.String())
}

func TestPNG(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/maps:render")

	response.PNG(rec, req, image.NewRGBA(image.Rect(0, 0, 4, 4)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rec.Body.String()[:4])
}

func TestHTML_OverridesCSP(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/timeseries:compute")
	rec.Header().Set("Content-Security-Policy", middleware.APIContentSecurityPolicy)

	response.HTML(rec, req, middleware.ChartContentSecurityPolicy, []byte("<html></html>"))

	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, middleware.ChartContentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "<html></html>", rec.Body.String())
}

func TestBadRequest_IncludesTraceID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/maps:render")

	response.BadRequest(rec, req, "invalid body", []models.FieldError{{Field: "city", Message: "required"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, rec.Header().Get("X-Request-Id"), problem.TraceID)
	assert.Equal(t, "/v1/maps:render", problem.Instance)
	require.Len(t, problem.Errors, 1)
}

func TestProblemFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"unknown city", fmt.Errorf("resolve: %w", geo.ErrUnknownCity), http.StatusBadRequest, models.ProblemTypeValidation},
		{"unknown gas", xgas.ErrUnknownGas, http.StatusBadRequest, models.ProblemTypeValidation},
		{"bad range", geo.ErrInvalidDateRange, http.StatusBadRequest, models.ProblemTypeValidation},
		{"bad mode", timeseries.ErrInvalidMode, http.StatusBadRequest, models.ProblemTypeValidation},
		{"bad opacity", overlay.ErrInvalidLayer, http.StatusBadRequest, models.ProblemTypeValidation},
		{"no data", fmt.Errorf("map: %w", imagery.ErrNoData), http.StatusNotFound, models.ProblemTypeNoData},
		{"run", archive.ErrRunNotFound, http.StatusNotFound, models.ProblemTypeNotFound},
		{"bad palette", fmt.Errorf("parse: %w", palette.ErrInvalidPalette), http.StatusBadRequest, models.ProblemTypeValidation},
		{"geometry", overlay.ErrGeometryMismatch, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"bad measurement", fmt.Errorf("convert: %w", xgas.ErrInvalidInput), http.StatusBadGateway, models.ProblemTypeUpstream},
		{"breaker", fmt.Errorf("%w: %w", imagery.ErrRemoteService, resilience.ErrCircuitOpen), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"remote", imagery.ErrRemoteService, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := response.ProblemFor(tt.err, "req_1")
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, "req_1", p.TraceID)
		})
	}

	assert.NotContains(t, response.ProblemFor(errors.New("secret dsn"), "").Detail, "secret")
}

func TestFromError_WritesProblem(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/runs/run_x")

	response.FromError(rec, req, archive.ErrRunNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
