package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/citytrace/citytrace/internal/api/middleware"

// Render requests fetch imagery for every bin, so durations run from
// milliseconds for metadata to minutes for a year of seasonal bins.
var durationBuckets = []float64{0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Metrics holds the OpenTelemetry HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	bodySize metric.Int64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	var errs [4]error
	m := &Metrics{}
	m.duration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	m.requests, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	m.inFlight, errs[2] = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("HTTP requests being processed, by endpoint group"),
		metric.WithUnit("{request}"),
	)
	m.bodySize, errs[3] = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("Size of HTTP server responses in bytes"),
		metric.WithUnit("By"),
	)
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// endpointGroup buckets a path into render, runs, metadata, ops or other.
// The group is known before routing, so in-flight gauges can use it.
func endpointGroup(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/maps"), strings.HasPrefix(path, "/v1/nightlights"),
		strings.HasPrefix(path, "/v1/timeseries"), strings.HasPrefix(path, "/v1/winds"):
		return "render"
	case strings.HasPrefix(path, "/v1/runs"):
		return "runs"
	case strings.HasPrefix(path, "/v1/metadata"):
		return "metadata"
	case strings.HasPrefix(path, "/v1/ops"), path == "/metrics":
		return "ops"
	default:
		return "other"
	}
}

// Middleware records request metrics. Routes are labelled by chi pattern
// once the request has been routed.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			group := attribute.String("citytrace.endpoint.group", endpointGroup(r.URL.Path))

			inFlight := metric.WithAttributes(group)
			m.inFlight.Add(r.Context(), 1, inFlight)
			defer m.inFlight.Add(r.Context(), -1, inFlight)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			attrs := []attribute.KeyValue{
				group,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.status_code", strconv.Itoa(rec.statusCode)),
			}
			if rec.statusCode >= 400 {
				attrs = append(attrs, attribute.Bool("error", true))
			}

			opt := metric.WithAttributes(attrs...)
			m.duration.Record(r.Context(), time.Since(start).Seconds(), opt)
			m.requests.Add(r.Context(), 1, opt)
			m.bodySize.Record(r.Context(), rec.written, opt)
		})
	}
}
