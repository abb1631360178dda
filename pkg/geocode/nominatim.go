package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kebabalogue/kebabctl/internal/model"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimClient implements Client against the OpenStreetMap Nominatim
// search API. Every lookup passes through a shared rate limiter; the
// provider's usage policy caps free-text search at one request per second
// and requires an identifying User-Agent.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NominatimOption configures the NominatimClient.
type NominatimOption func(*NominatimClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) NominatimOption {
	return func(c *NominatimClient) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the search endpoint.
func WithBaseURL(u string) NominatimOption {
	return func(c *NominatimClient) {
		c.baseURL = u
	}
}

// WithMinInterval sets the minimum spacing between lookups.
func WithMinInterval(d time.Duration) NominatimOption {
	return func(c *NominatimClient) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLimiter injects a shared rate limiter, replacing the default.
func WithLimiter(l *rate.Limiter) NominatimOption {
	return func(c *NominatimClient) {
		c.limiter = l
	}
}

// NewNominatimClient creates a rate-limited Nominatim client. The userAgent
// is mandatory: sending unidentified requests violates the provider's usage
// policy, so construction fails rather than leaving it to a runtime check.
func NewNominatimClient(userAgent string, opts ...NominatimOption) (*NominatimClient, error) {
	if userAgent == "" {
		return nil, eris.New("geocode: nominatim user agent is required")
	}
	c := &NominatimClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultNominatimURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// nominatimPlace is one candidate in the Nominatim JSON response.
// Coordinates are string-encoded by the API.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup geocodes a single free-text query, requesting at most one
// candidate. An empty result set is an unmatched Result, not an error.
func (c *NominatimClient) Lookup(ctx context.Context, query string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"format": {"json"},
		"q":      {query},
		"limit":  {"1"},
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		return &Result{Matched: false}, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lat")
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lon")
	}

	zap.L().Debug("nominatim match",
		zap.String("query", query),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
	)

	return &Result{
		Coord:   model.Coordinate{Lat: lat, Lon: lon},
		Matched: true,
	}, nil
}
