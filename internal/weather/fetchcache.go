package weather

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/publicfarley/simple-weather/internal/models"
	"github.com/publicfarley/simple-weather/internal/observability"
)

// FetchPhase is the interactive fetch state exposed to the UI layer.
type FetchPhase string

const (
	FetchIdle    FetchPhase = "idle"
	FetchLoading FetchPhase = "loading"
	FetchSuccess FetchPhase = "success"
	FetchFailed  FetchPhase = "failed"
)

// State is the observable weather state for the interactively displayed
// location. Entering Loading clears all previously displayed data; a failed
// fetch leaves data empty rather than pairing stale data with an error.
type State struct {
	Phase   FetchPhase                `json:"phase"`
	Current *models.CurrentConditions `json:"current,omitempty"`
	Daily   []models.DailyForecast    `json:"daily,omitempty"`
	Hourly  []models.HourlyForecast   `json:"hourly,omitempty"`
	Err     error                     `json:"-"`
}

// FetchCache serves weather snapshots for coordinates, preferring a fresh
// cached snapshot and otherwise fetching from the provider. The snapshot
// map is memory-only and shared between the interactive path and the batch
// path; writes are version-checked so a slow stale fetch never overwrites a
// newer snapshot.
type FetchCache struct {
	provider  Provider
	logger    *zap.Logger
	freshness time.Duration
	coalescer *fetchCoalescer

	mu        sync.Mutex
	snapshots map[string]models.WeatherSnapshot

	stateMu sync.Mutex
	state   State

	now func() time.Time
}

// NewFetchCache returns a FetchCache with the given freshness window.
// coalesceTimeout bounds how long a caller waits on another caller's
// in-flight fetch for the same key.
func NewFetchCache(provider Provider, freshness, coalesceTimeout time.Duration, logger *zap.Logger) *FetchCache {
	return &FetchCache{
		provider:  provider,
		logger:    logger,
		freshness: freshness,
		coalescer: newFetchCoalescer(coalesceTimeout),
		snapshots: make(map[string]models.WeatherSnapshot),
		state:     State{Phase: FetchIdle},
		now:       time.Now,
	}
}

// Fetch returns the snapshot for coord, serving a fresh cached copy without
// touching the provider, otherwise issuing the three sub-fetches (current,
// daily, hourly) concurrently and caching the combined result. Concurrent
// fetches for the same key share one provider round-trip.
func (c *FetchCache) Fetch(ctx context.Context, coord models.Coordinate) (models.WeatherSnapshot, error) {
	key := coord.Key()

	if snap, ok := c.lookup(key); ok {
		c.logger.Debug("snapshot cache hit", zap.String("key", key))
		return snap, nil
	}

	return c.coalescer.Do(ctx, key, func() (models.WeatherSnapshot, error) {
		return c.fetchRemote(ctx, coord)
	})
}

// lookup returns the cached snapshot when present and fresh. A snapshot
// found past the freshness window is evicted and reported as a miss.
func (c *FetchCache) lookup(key string) (models.WeatherSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.snapshots[key]
	if !ok {
		observability.SnapshotCacheReadsTotal.WithLabelValues("miss").Inc()
		return models.WeatherSnapshot{}, false
	}
	if !snap.FreshAt(c.now(), c.freshness) {
		observability.SnapshotCacheReadsTotal.WithLabelValues("expired").Inc()
		delete(c.snapshots, key)
		return models.WeatherSnapshot{}, false
	}
	observability.SnapshotCacheReadsTotal.WithLabelValues("hit").Inc()
	return snap, true
}

// fetchRemote issues the three provider sub-fetches in parallel. All three
// must succeed; the first failure cancels the rest and fails the fetch
// without mutating the snapshot cache.
func (c *FetchCache) fetchRemote(ctx context.Context, coord models.Coordinate) (models.WeatherSnapshot, error) {
	var (
		current models.CurrentConditions
		daily   []models.DailyForecast
		hourly  []models.HourlyForecast
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = c.provider.GetCurrent(gctx, coord)
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = c.provider.GetDaily(gctx, coord)
		return err
	})
	g.Go(func() error {
		var err error
		hourly, err = c.provider.GetHourly(gctx, coord)
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("weather fetch failed", zap.String("key", coord.Key()), zap.Error(err))
		return models.WeatherSnapshot{}, err
	}

	now := c.now()
	current.PrecipChanceToday = precipChanceToday(hourly, now)

	snap := models.WeatherSnapshot{
		Coordinate:  coord,
		Current:     current,
		Daily:       trimDaily(daily, now),
		Hourly:      trimHourly(hourly, now),
		LastUpdated: now,
	}
	c.storeSnapshot(snap)
	return snap, nil
}

// storeSnapshot writes snap unless a newer snapshot already occupies the
// key. LastUpdated never rolls back.
func (c *FetchCache) storeSnapshot(snap models.WeatherSnapshot) {
	key := snap.Coordinate.Key()
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.snapshots[key]; ok && snap.LastUpdated.Before(existing.LastUpdated) {
		c.logger.Debug("discarding late snapshot", zap.String("key", key),
			zap.Time("incoming", snap.LastUpdated), zap.Time("existing", existing.LastUpdated))
		return
	}
	c.snapshots[key] = snap
}

// Refresh drives the interactive fetch state machine for coord: Loading
// clears the displayed data, then the result publishes either all three
// record sets or the error with data left empty.
func (c *FetchCache) Refresh(ctx context.Context, coord models.Coordinate) error {
	c.stateMu.Lock()
	c.state = State{Phase: FetchLoading}
	c.stateMu.Unlock()

	snap, err := c.Fetch(ctx, coord)

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if err != nil {
		c.state = State{Phase: FetchFailed, Err: err}
		return err
	}
	current := snap.Current
	c.state = State{
		Phase:   FetchSuccess,
		Current: &current,
		Daily:   snap.Daily,
		Hourly:  snap.Hourly,
	}
	return nil
}

// FetchBatch fetches snapshots for all coordinates concurrently. Failures
// are logged and their coordinates omitted from the result; successful
// snapshots land in the shared cache as a side effect.
func (c *FetchCache) FetchBatch(ctx context.Context, coords []models.Coordinate) map[string]models.WeatherSnapshot {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]models.WeatherSnapshot, len(coords))
	)

	for _, coord := range coords {
		coord := coord
		wg.Add(1)
		go func() {
			defer wg.Done()

			snap, err := c.Fetch(ctx, coord)
			if err != nil {
				observability.BatchRefreshPlacesTotal.WithLabelValues("failed").Inc()
				c.logger.Warn("batch fetch failed for coordinate",
					zap.String("key", coord.Key()), zap.Error(err))
				return
			}
			observability.BatchRefreshPlacesTotal.WithLabelValues("ok").Inc()

			mu.Lock()
			results[coord.Key()] = snap
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// State returns a copy of the observable interactive weather state.
func (c *FetchCache) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	s := State{Phase: c.state.Phase, Err: c.state.Err}
	if c.state.Current != nil {
		current := *c.state.Current
		s.Current = &current
	}
	s.Daily = append([]models.DailyForecast{}, c.state.Daily...)
	s.Hourly = append([]models.HourlyForecast{}, c.state.Hourly...)
	return s
}
