package location

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/publicfarley/simple-weather/internal/models"
	"github.com/publicfarley/simple-weather/internal/observability"
	"github.com/publicfarley/simple-weather/internal/store"
)

// Cache is the durable single-slot cache of the last known device
// coordinate. Persistence failures are logged and counted but never
// surfaced: the slot is best-effort, not a correctness-critical path.
type Cache struct {
	store  store.RecordStore
	window time.Duration
	logger *zap.Logger

	now func() time.Time
}

// NewCache returns a Cache with the given freshness window.
func NewCache(st store.RecordStore, window time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		store:  st,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Store replaces the slot with coord captured now.
func (c *Cache) Store(ctx context.Context, coord models.Coordinate) {
	rec := models.CachedLocationRecord{
		Latitude:   coord.Latitude,
		Longitude:  coord.Longitude,
		CapturedAt: c.now(),
	}
	if err := c.store.PutCachedLocation(ctx, rec); err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("store_location").Inc()
		c.logger.Warn("cached location write failed", zap.Error(err))
		return
	}
	observability.LocationSlotOpsTotal.WithLabelValues("store").Inc()
}

// Retrieve returns the cached coordinate, or ok=false when the slot is empty
// or stale. A stale record found during retrieval is evicted immediately.
func (c *Cache) Retrieve(ctx context.Context) (models.Coordinate, bool) {
	rec, ok, err := c.store.GetCachedLocation(ctx)
	if err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("retrieve_location").Inc()
		c.logger.Warn("cached location read failed", zap.Error(err))
		return models.Coordinate{}, false
	}
	if !ok {
		return models.Coordinate{}, false
	}

	if rec.StaleAt(c.now(), c.window) {
		observability.LocationSlotOpsTotal.WithLabelValues("retrieve_stale").Inc()
		c.logger.Debug("cached location stale, evicting",
			zap.Time("capturedAt", rec.CapturedAt),
			zap.Duration("window", c.window))
		c.evict(ctx)
		return models.Coordinate{}, false
	}

	observability.LocationSlotOpsTotal.WithLabelValues("retrieve_hit").Inc()
	return rec.Coordinate(), true
}

// Clear unconditionally deletes the slot.
func (c *Cache) Clear(ctx context.Context) {
	c.evict(ctx)
	observability.LocationSlotOpsTotal.WithLabelValues("clear").Inc()
}

func (c *Cache) evict(ctx context.Context) {
	if err := c.store.DeleteCachedLocation(ctx); err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("delete_location").Inc()
		c.logger.Warn("cached location delete failed", zap.Error(err))
	}
}
