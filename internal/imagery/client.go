package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/raster"
	"github.com/citytrace/citytrace/internal/xgas"
)

const (
	// DefaultBaseURL is the gateway address used when none is configured.
	DefaultBaseURL = "http://localhost:8090"

	// ProviderName identifies the gateway in the provider registry.
	ProviderName = "imagery"

	// DefaultScope is the OAuth2 scope requested for gateway calls.
	DefaultScope = "https://www.googleapis.com/auth/earthengine.readonly"

	// DefaultDimensions is the raster size used when a request leaves it unset.
	DefaultDimensions = 512
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the gateway client.
type ClientConfig struct {
	// BaseURL is the gateway base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is built
	// from the remaining fields.
	HTTPClient HTTPDoer

	// Timeout for each gateway call (default: 30s).
	Timeout time.Duration

	// MaxRetries for transient failures (default: 2).
	MaxRetries uint64

	// TokenSource, when set, authorises every call with a bearer token.
	TokenSource oauth2.TokenSource

	// Registry receives the resilient client for status reporting.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is the imagery gateway client. It is safe for concurrent use and
// meant to be built once and injected.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

var _ Service = (*Client)(nil)

// NewClient creates a gateway client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		retries := cfg.MaxRetries
		if retries == 0 {
			retries = 2
		}

		var transport http.RoundTripper
		if cfg.TokenSource != nil {
			transport = &oauth2.Transport{Source: cfg.TokenSource, Base: http.DefaultTransport}
		}

		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      retries,
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Transport:       transport,
			Registry:        cfg.Registry,
			Logger:          cfg.Logger,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "imagery").Logger(),
	}
}

// DefaultTokenSource returns Google application default credentials for scopes,
// falling back to DefaultScope.
func DefaultTokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	ts, err := google.DefaultTokenSource(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("load default credentials: %w", err)
	}
	return ts, nil
}

// Gateway wire types.

type pointJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type regionJSON struct {
	Center       pointJSON  `json:"center"`
	RadiusMeters float64    `json:"radiusMeters"`
	BBox         [4]float64 `json:"bbox"`
}

type fieldJSON struct {
	Kind       string           `json:"kind"`
	Band       *xgas.BandSource `json:"band,omitempty"`
	Gas        *xgas.BandSource `json:"gas,omitempty"`
	WaterVapor *xgas.BandSource `json:"waterVapour,omitempty"`
	Pressure   *xgas.BandSource `json:"pressure,omitempty"`
	Constants  *xgas.Constants  `json:"constants,omitempty"`
}

type sizeRequest struct {
	Collection string     `json:"collection"`
	Region     regionJSON `json:"region"`
	Start      string     `json:"start"`
	End        string     `json:"end"`
}

type sizeResponse struct {
	Size int `json:"size"`
}

type reduceRequest struct {
	Field       fieldJSON  `json:"field"`
	Region      regionJSON `json:"region"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Reducer     Reducer    `json:"reducer"`
	Percentiles []float64  `json:"percentiles,omitempty"`
	Scale       float64    `json:"scale"`
}

type reduceResponse struct {
	Values map[string]*float64 `json:"values"`
}

type rasterRequest struct {
	Field      fieldJSON  `json:"field"`
	Region     regionJSON `json:"region"`
	Start      string     `json:"start"`
	End        string     `json:"end"`
	Scale      float64    `json:"scale"`
	Dimensions int        `json:"dimensions"`
}

type rasterResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Extent has the same [minLon, minLat, maxLon, maxLat] order as bbox.
	Extent [4]float64 `json:"extent"`
	Values []*float64 `json:"values"`
}

func (r rasterResponse) extent() geo.Extent {
	return geo.BoundingBox{
		MinLon: r.Extent[0],
		MinLat: r.Extent[1],
		MaxLon: r.Extent[2],
		MaxLat: r.Extent[3],
	}.Extent()
}

// CollectionSize returns the number of images in collection matching q.
func (c *Client) CollectionSize(ctx context.Context, collection string, q Query) (int, error) {
	body := sizeRequest{
		Collection: collection,
		Region:     toRegion(q.Region),
		Start:      q.Range.Start.Format(geo.DateLayout),
		End:        q.Range.End.Format(geo.DateLayout),
	}

	var out sizeResponse
	if err := c.post(ctx, "/v1/collections:size", body, &out); err != nil {
		return 0, fmt.Errorf("collection size %s: %w", collection, err)
	}
	return out.Size, nil
}

// Reduce computes a regional statistic of req.Field.
func (c *Client) Reduce(ctx context.Context, req ReduceRequest) (Stats, error) {
	field, err := toField(req.Field)
	if err != nil {
		return nil, err
	}

	body := reduceRequest{
		Field:       field,
		Region:      toRegion(req.Query.Region),
		Start:       req.Query.Range.Start.Format(geo.DateLayout),
		End:         req.Query.Range.End.Format(geo.DateLayout),
		Reducer:     req.Reducer,
		Percentiles: req.Percentiles,
		Scale:       req.Scale,
	}

	var out reduceResponse
	if err := c.post(ctx, "/v1/fields:reduce", body, &out); err != nil {
		return nil, fmt.Errorf("reduce %s: %w", req.Reducer, err)
	}
	if out.Values == nil {
		return Stats{}, nil
	}
	return Stats(out.Values), nil
}

// Raster samples req.Field on a grid. A grid without a single valid pixel
// is reported as ErrNoData.
func (c *Client) Raster(ctx context.Context, req RasterRequest) (*raster.Grid, error) {
	field, err := toField(req.Field)
	if err != nil {
		return nil, err
	}
	dims := req.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	body := rasterRequest{
		Field:      field,
		Region:     toRegion(req.Query.Region),
		Start:      req.Query.Range.Start.Format(geo.DateLayout),
		End:        req.Query.Range.End.Format(geo.DateLayout),
		Scale:      req.Scale,
		Dimensions: dims,
	}

	var out rasterResponse
	if err := c.post(ctx, "/v1/fields:raster", body, &out); err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}

	grid, err := raster.FromValues(out.Width, out.Height, out.extent(), out.Values)
	if err != nil {
		return nil, fmt.Errorf("%w: decode raster: %v", ErrRemoteService, err)
	}
	if grid.ValidCount() == 0 {
		return nil, fmt.Errorf("raster: %w", ErrNoData)
	}
	return grid, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("gateway call failed")
		return fmt.Errorf("%w: %w", ErrRemoteService, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("gateway call")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNoData
	case resp.StatusCode != http.StatusOK:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRemoteService, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteService, err)
	}
	return nil
}

func toRegion(r geo.BufferedRegion) regionJSON {
	b := r.Bounds()
	return regionJSON{
		Center:       pointJSON{Lat: r.Center.Lat, Lon: r.Center.Lon},
		RadiusMeters: r.RadiusMeters,
		BBox:         [4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat},
	}
}

func toField(f Field) (fieldJSON, error) {
	if err := f.Validate(); err != nil {
		return fieldJSON{}, err
	}
	if f.Band != nil {
		return fieldJSON{Kind: "band", Band: f.Band}, nil
	}
	m := f.MixingRatio
	pressure := m.Pressure
	constants := m.Constants
	gas := m.Gas
	return fieldJSON{
		Kind:       "mixingRatio",
		Gas:        &gas,
		WaterVapor: m.WaterVapor,
		Pressure:   &pressure,
		Constants:  &constants,
	}, nil
}
