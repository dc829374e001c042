// Package store holds the single dataset currently in memory.
package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rayscope/rayscope/backend-go/internal/loader"
	"github.com/rayscope/rayscope/backend-go/internal/scene"
)

// ErrNoDataset is returned before the first load has finished.
var ErrNoDataset = errors.New("no dataset loaded")

// Snapshot is the store's state at one point in time. Exactly one of
// Dataset and Err is set.
type Snapshot struct {
	Dataset  *scene.Dataset
	Err      error
	Version  int64
	LoadedAt time.Time
}

// Store keeps one dataset, or the error of the last failed load. A failed
// load replaces the previous dataset: a stale view is never shown next to a
// load error.
type Store struct {
	loader  *loader.Loader
	sources []loader.Source

	mu       sync.RWMutex
	ds       *scene.Dataset
	err      error
	version  int64
	loadedAt time.Time
	watchers []func(Snapshot)
}

// New creates an empty store that reloads from sources with l.
func New(l *loader.Loader, sources []loader.Source) *Store {
	return &Store{loader: l, sources: sources}
}

// Current returns the dataset, or the load error.
func (s *Store) Current() (*scene.Dataset, error) {
	snap := s.Snapshot()
	return snap.Dataset, snap.Err
}

// Snapshot returns the full current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Dataset: s.ds, Err: s.err, Version: s.version, LoadedAt: s.loadedAt}
	if snap.Dataset == nil && snap.Err == nil {
		snap.Err = ErrNoDataset
	}
	return snap
}

// Watch registers fn to be called after every change. fn runs on the
// goroutine that made the change and must not block.
func (s *Store) Watch(fn func(Snapshot)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// Set replaces the dataset.
func (s *Store) Set(ds *scene.Dataset) {
	s.update(ds, nil)
}

// Fail records a load error and drops the dataset.
func (s *Store) Fail(err error) {
	s.update(nil, err)
}

func (s *Store) update(ds *scene.Dataset, err error) {
	s.mu.Lock()
	s.ds, s.err = ds, err
	s.version++
	s.loadedAt = time.Now()
	snap := Snapshot{Dataset: ds, Err: err, Version: s.version, LoadedAt: s.loadedAt}
	watchers := slices.Clone(s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(snap)
	}
}

// Reload loads from the configured sources.
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx, s.sources...)
}

// Load loads from sources and stores the result or the error.
func (s *Store) Load(ctx context.Context, sources ...loader.Source) error {
	ds, err := s.loader.Load(ctx, sources...)
	if err != nil {
		var le *loader.Error
		if errors.As(err, &le) {
			slog.Error("load dataset", "source", le.Source, "error", err)
		} else {
			slog.Error("load dataset", "error", err)
		}
		s.Fail(err)
		return err
	}

	slog.Info("dataset loaded",
		"rays", len(ds.Rays),
		"particles", len(ds.Medium),
		"endpoints", len(ds.Endpoints),
		"domain", ds.Parameters.DomainSize(),
	)
	s.Set(ds)
	return nil
}
