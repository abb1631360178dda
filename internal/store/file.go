package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// FileStore keeps the cache in memory and rewrites a JSON file wholesale at
// each persist point — the same flat "{name}-{suburb}" → {lat, lon} mapping
// the original build script produced, so existing cache files keep working.
// Run history lives in a sidecar file next to the cache.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries map[string]model.Coordinate
	runs    []RunSummary
	dirty   bool
}

// NewFile opens (or initializes) a file-backed store. A missing or corrupt
// cache file is never fatal: the store starts empty and the condition is
// logged, per the cache resilience contract.
func NewFile(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		entries: make(map[string]model.Coordinate),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		zap.L().Info("store: no cache file yet, starting empty", zap.String("path", path))
	case err != nil:
		zap.L().Warn("store: cache file unreadable, starting empty",
			zap.String("path", path),
			zap.Error(err),
		)
	default:
		if jsonErr := json.Unmarshal(data, &s.entries); jsonErr != nil {
			zap.L().Warn("store: cache file corrupt, starting empty",
				zap.String("path", path),
				zap.Error(jsonErr),
			)
			s.entries = make(map[string]model.Coordinate)
		}
	}

	if runsData, runsErr := os.ReadFile(s.runsPath()); runsErr == nil {
		if jsonErr := json.Unmarshal(runsData, &s.runs); jsonErr != nil {
			zap.L().Warn("store: run history corrupt, discarding", zap.Error(jsonErr))
			s.runs = nil
		}
	}

	return s, nil
}

func (s *FileStore) runsPath() string {
	return s.path + ".runs"
}

func (s *FileStore) Get(_ context.Context, key string) (*model.Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *FileStore) Put(_ context.Context, key string, coord model.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = coord
	s.dirty = true
	return nil
}

// Flush rewrites the cache file atomically (temp file + rename). No-op when
// nothing changed since the last flush.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: marshal cache")
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}

	s.dirty = false
	zap.L().Debug("store: cache flushed",
		zap.String("path", s.path),
		zap.Int("entries", len(s.entries)),
	)
	return nil
}

func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *FileStore) All(_ context.Context) (map[string]model.Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Coordinate, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *FileStore) RecordRun(_ context.Context, run RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)

	data, err := json.MarshalIndent(s.runs, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: marshal runs")
	}
	return writeAtomic(s.runsPath(), data)
}

func (s *FileStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest first.
	out := make([]RunSummary, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close performs a final flush.
func (s *FileStore) Close() error {
	return s.Flush(context.Background())
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "store: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "store: rename %s", path)
	}
	return nil
}
