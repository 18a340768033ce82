package store

import (
	"context"

	"github.com/publicfarley/simple-weather/internal/models"
)

// RecordStore is the durable record store contract the caches depend on.
// It holds exactly one cached-location slot plus the set of user-saved
// places. Weather snapshots are never persisted.
type RecordStore interface {
	// PutCachedLocation replaces the single cached-location slot.
	PutCachedLocation(ctx context.Context, rec models.CachedLocationRecord) error
	// GetCachedLocation returns the slot contents, or ok=false when empty.
	GetCachedLocation(ctx context.Context) (models.CachedLocationRecord, bool, error)
	// DeleteCachedLocation empties the slot. Deleting an empty slot is not an error.
	DeleteCachedLocation(ctx context.Context) error

	// SavePlace upserts a saved place. The current-location placeholder flag
	// is never persisted: it is written as false regardless of input.
	SavePlace(ctx context.Context, p models.SavedPlace) error
	DeletePlace(ctx context.Context, id string) error
	ListPlaces(ctx context.Context) ([]models.SavedPlace, error)

	Close() error
}
