package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNominatimClientRequiresUserAgent(t *testing.T) {
	_, err := NewNominatimClient("")
	require.Error(t, err)

	c, err := NewNominatimClient("test-agent/1.0")
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestNominatimLookupMatch(t *testing.T) {
	var gotUA string
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"lat":"-33.8839","lon":"150.9245","display_name":"Yagoona NSW"}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewNominatimClient("test-agent/1.0",
		WithBaseURL(srv.URL),
		WithLimiter(newTestLimiter()),
	)
	require.NoError(t, err)

	res, err := c.Lookup(context.Background(), "Jasmin1, Yagoona 2199, Australia")
	require.NoError(t, err)

	assert.True(t, res.Matched)
	assert.InDelta(t, -33.8839, res.Coord.Lat, 1e-6)
	assert.InDelta(t, 150.9245, res.Coord.Lon, 1e-6)
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Equal(t, "Jasmin1, Yagoona 2199, Australia", gotQuery)
}

func TestNominatimLookupEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewNominatimClient("test-agent/1.0",
		WithBaseURL(srv.URL),
		WithLimiter(newTestLimiter()),
	)
	require.NoError(t, err)

	res, err := c.Lookup(context.Background(), "Nowhere Kebabs, Atlantis, Australia")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestNominatimLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewNominatimClient("test-agent/1.0",
		WithBaseURL(srv.URL),
		WithLimiter(newTestLimiter()),
	)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestNominatimLookupMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewNominatimClient("test-agent/1.0",
		WithBaseURL(srv.URL),
		WithLimiter(newTestLimiter()),
	)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "anything")
	require.Error(t, err)
}

func TestNominatimLookupRateLimited(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewNominatimClient("test-agent/1.0",
		WithBaseURL(srv.URL),
		WithMinInterval(50*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Lookup(context.Background(), "spacing test")
		require.NoError(t, err)
	}

	// First token is free, the other two wait out the interval.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int64(3), calls.Load())
}

func TestNominatimLookupCancelledWhileWaiting(t *testing.T) {
	c, err := NewNominatimClient("test-agent/1.0",
		WithMinInterval(time.Hour),
	)
	require.NoError(t, err)

	ctx, cancel := waitCtx(20 * time.Millisecond)
	defer cancel()

	// Burn the free token, then the second wait must fail on the deadline
	// before any request is attempted.
	c.limiter.Allow()
	_, err = c.Lookup(ctx, "never sent")
	require.Error(t, err)
}
