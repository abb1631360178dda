package geocode

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// newTestLimiter removes rate limiting so tests run at full speed.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// fakeClient is a scripted Client that counts lookups.
type fakeClient struct {
	calls   atomic.Int64
	results map[string]*Result
	err     error
}

func (f *fakeClient) Lookup(_ context.Context, query string) (*Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[query]; ok {
		return res, nil
	}
	return &Result{Matched: false}, nil
}

// memCache is an in-memory Cache that counts flushes.
type memCache struct {
	mu      sync.Mutex
	entries map[string]model.Coordinate
	flushes int
	putErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]model.Coordinate)}
}

func (m *memCache) Get(_ context.Context, key string) (*model.Coordinate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.entries[key]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memCache) Put(_ context.Context, key string, coord model.Coordinate) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = coord
	return nil
}

func (m *memCache) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

func (m *memCache) flushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

var _ Client = (*fakeClient)(nil)
var _ Cache = (*memCache)(nil)

// waitCtx is a convenience for tests that need a deadline.
func waitCtx(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
