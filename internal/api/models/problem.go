package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is a URI reference that identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`

	// TraceID is the request identifier for debugging.
	TraceID string `json:"traceId"`

	// Errors contains structured field validation errors.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem types.
const (
	ProblemTypeValidation       = "https://api.citytrace.dev/problems/validation-error"
	ProblemTypeUnauthorized     = "https://api.citytrace.dev/problems/unauthorized"
	ProblemTypeTLSRequired      = "https://api.citytrace.dev/problems/tls-required"
	ProblemTypeNotFound         = "https://api.citytrace.dev/problems/not-found"
	ProblemTypeNoData           = "https://api.citytrace.dev/problems/no-data"
	ProblemTypeUnsupportedMedia = "https://api.citytrace.dev/problems/unsupported-media-type"
	ProblemTypeTooManyRequests  = "https://api.citytrace.dev/problems/too-many-requests"
	ProblemTypeInternal         = "https://api.citytrace.dev/problems/internal-error"
	ProblemTypeUpstream         = "https://api.citytrace.dev/problems/upstream-error"
	ProblemTypeUnavailable      = "https://api.citytrace.dev/problems/service-unavailable"
)

// kind fixes the type, title and status of a family of problems.
type kind struct {
	typ    string
	title  string
	status int
}

var (
	kindValidation       = kind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	kindUnauthorized     = kind{ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized}
	kindTLSRequired      = kind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	kindNotFound         = kind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	kindNoData           = kind{ProblemTypeNoData, "No imagery data", http.StatusNotFound}
	kindUnsupportedMedia = kind{ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType}
	kindTooManyRequests  = kind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	kindInternal         = kind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	kindUpstream         = kind{ProblemTypeUpstream, "Upstream error", http.StatusBadGateway}
	kindUnavailable      = kind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

func (k kind) problem(traceID, detail string) *Problem {
	return &Problem{Type: k.typ, Title: k.title, Status: k.status, Detail: detail, TraceID: traceID}
}

// NewProblem creates a Problem of an arbitrary type.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return kind{problemType, title, status}.problem(traceID, "")
}

// WithDetail sets the detail message.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors sets the field errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write encodes the problem as application/problem+json with its status.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest is a 400 with optional field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return kindValidation.problem(traceID, detail).WithErrors(errors)
}

// NewUnauthorized is a 401.
func NewUnauthorized(traceID, detail string) *Problem {
	return kindUnauthorized.problem(traceID, detail)
}

// NewTLSRequired is a 403 for plain-HTTP requests to a TLS-only API.
func NewTLSRequired(traceID, detail string) *Problem {
	return kindTLSRequired.problem(traceID, detail)
}

// NewNotFound is a 404 for unknown routes and runs.
func NewNotFound(traceID, detail string) *Problem {
	return kindNotFound.problem(traceID, detail)
}

// NewNoData is a 404 for a query the imagery catalogue cannot answer.
func NewNoData(traceID, detail string) *Problem {
	return kindNoData.problem(traceID, detail)
}

// NewUnsupportedMedia is a 415.
func NewUnsupportedMedia(traceID, detail string) *Problem {
	return kindUnsupportedMedia.problem(traceID, detail)
}

// NewTooManyRequests is a 429.
func NewTooManyRequests(traceID, detail string) *Problem {
	return kindTooManyRequests.problem(traceID, detail)
}

// NewInternalError is a 500. detail must not leak internals.
func NewInternalError(traceID, detail string) *Problem {
	return kindInternal.problem(traceID, detail)
}

// NewBadGateway is a 502 for inconsistent upstream data.
func NewBadGateway(traceID, detail string) *Problem {
	return kindUpstream.problem(traceID, detail)
}

// NewServiceUnavailable is a 503 for an unreachable gateway or open circuit.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return kindUnavailable.problem(traceID, detail)
}
