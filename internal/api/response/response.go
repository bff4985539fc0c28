// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"image"
	"net/http"

	"github.com/citytrace/citytrace/internal/api/middleware"
	"github.com/citytrace/citytrace/internal/api/models"
	"github.com/citytrace/citytrace/internal/overlay"
)

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// PNG encodes img and writes it with status 200. Encoding happens before
// the header is written so a failure still produces a problem response.
func PNG(w http.ResponseWriter, r *http.Request, img image.Image) {
	data, err := overlay.EncodePNG(img)
	if err != nil {
		InternalError(w, r, "failed to encode image")
		return
	}
	setRequestID(w, r)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HTML writes a rendered page with the given Content-Security-Policy.
func HTML(w http.ResponseWriter, r *http.Request, csp string, page []byte) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if csp != "" {
		w.Header().Set("Content-Security-Policy", csp)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}
