package geocode

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// Map URLs embed the place coordinate as ".../@-33.8839,150.9245,17z/...".
var linkCoordPattern = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)

// LinkResolution is the information extracted from a resolved map link.
// Either field may be absent: a redirect target can carry a canonical place
// name, an embedded coordinate, both, or neither.
type LinkResolution struct {
	CanonicalName string
	Coord         *model.Coordinate
}

// LinkResolver follows map short-links to their terminal URL and extracts
// a canonical name and embedded coordinate from it. Only the URL string is
// inspected, never the response body. The map host is unrelated to the
// geocoding provider and is not bound by its rate limit.
type LinkResolver struct {
	httpClient *http.Client
	userAgent  string
}

// LinkOption configures the LinkResolver.
type LinkOption func(*LinkResolver)

// WithLinkHTTPClient sets a custom HTTP client for link resolution.
func WithLinkHTTPClient(hc *http.Client) LinkOption {
	return func(lr *LinkResolver) {
		lr.httpClient = hc
	}
}

// WithLinkUserAgent sets the User-Agent sent when following links.
func WithLinkUserAgent(ua string) LinkOption {
	return func(lr *LinkResolver) {
		lr.userAgent = ua
	}
}

// NewLinkResolver creates a LinkResolver with a 10s default timeout.
func NewLinkResolver(opts ...LinkOption) *LinkResolver {
	lr := &LinkResolver{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "Mozilla/5.0 (compatible; kebabctl/1.0)",
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Resolve follows the link to its terminal URL and extracts what it can.
// Inputs that do not look like absolute URLs return (nil, nil) without any
// network call. Transport failures are errors for the caller to downgrade;
// a reachable link that yields nothing returns an empty LinkResolution.
func (lr *LinkResolver) Resolve(ctx context.Context, link string) (*LinkResolution, error) {
	if link == "" || !strings.HasPrefix(link, "http") {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: link build request")
	}
	req.Header.Set("User-Agent", lr.userAgent)

	resp, err := lr.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: link request")
	}
	defer resp.Body.Close() //nolint:errcheck

	// resp.Request holds the final request after redirects.
	finalURL := resp.Request.URL

	res := &LinkResolution{}

	// The q parameter carries the place name; net/url decodes both %XX
	// escapes and + as space.
	if q := finalURL.Query().Get("q"); q != "" {
		res.CanonicalName = q
	}

	if m := linkCoordPattern.FindStringSubmatch(finalURL.String()); m != nil {
		lat, latErr := strconv.ParseFloat(m[1], 64)
		lon, lonErr := strconv.ParseFloat(m[2], 64)
		if latErr == nil && lonErr == nil {
			res.Coord = &model.Coordinate{Lat: lat, Lon: lon}
		}
	}

	return res, nil
}
