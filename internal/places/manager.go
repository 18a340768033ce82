// Package places manages the user's saved places list. The in-memory list
// is the source of truth; the durable store is written behind it on a
// best-effort basis, so a failing disk degrades to session-only persistence
// instead of failing the operation.
package places

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/publicfarley/simple-weather/internal/models"
	"github.com/publicfarley/simple-weather/internal/observability"
	"github.com/publicfarley/simple-weather/internal/store"
)

// currentLocationID is the fixed ID of the memory-only current-location
// placeholder. It never appears in the durable store.
const currentLocationID = "current-location"

// Manager holds the saved places plus an optional current-location
// placeholder that exists only for the lifetime of the process.
type Manager struct {
	store  store.RecordStore
	logger *zap.Logger

	mu      sync.Mutex
	places  []models.SavedPlace
	current *models.SavedPlace

	newID func() string
}

// NewManager loads the persisted places into memory. A load failure is
// logged and the manager starts empty rather than refusing to run.
func NewManager(ctx context.Context, st store.RecordStore, logger *zap.Logger) *Manager {
	m := &Manager{
		store:  st,
		logger: logger,
		newID:  uuid.NewString,
	}

	persisted, err := st.ListPlaces(ctx)
	if err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("list_places").Inc()
		logger.Error("failed to load saved places, starting empty", zap.Error(err))
		return m
	}
	m.places = persisted
	logger.Info("loaded saved places", zap.Int("count", len(persisted)))
	return m
}

// Add creates a saved place and persists it behind the in-memory write.
func (m *Manager) Add(ctx context.Context, name string, coord models.Coordinate) models.SavedPlace {
	place := models.SavedPlace{
		ID:         m.newID(),
		Name:       name,
		Coordinate: coord,
	}

	m.mu.Lock()
	m.places = append(m.places, place)
	m.mu.Unlock()

	if err := m.store.SavePlace(ctx, place); err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("save_place").Inc()
		m.logger.Error("failed to persist saved place", zap.String("id", place.ID), zap.Error(err))
	}
	observability.SavedPlaceOpsTotal.WithLabelValues("add").Inc()
	return place
}

// Remove deletes a saved place by ID and reports whether it existed. The
// current-location placeholder cannot be removed this way.
func (m *Manager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	found := false
	for i, p := range m.places {
		if p.ID == id {
			m.places = append(m.places[:i], m.places[i+1:]...)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return false
	}
	if err := m.store.DeletePlace(ctx, id); err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("delete_place").Inc()
		m.logger.Error("failed to delete persisted place", zap.String("id", id), zap.Error(err))
	}
	observability.SavedPlaceOpsTotal.WithLabelValues("remove").Inc()
	return true
}

// List returns the places for display: the current-location placeholder
// first when present, then the saved places in insertion order.
func (m *Manager) List() []models.SavedPlace {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SavedPlace, 0, len(m.places)+1)
	if m.current != nil {
		out = append(out, *m.current)
	}
	return append(out, m.places...)
}

// SetCurrentLocation installs or moves the memory-only placeholder.
func (m *Manager) SetCurrentLocation(coord models.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &models.SavedPlace{
		ID:                           currentLocationID,
		Name:                         "Current Location",
		Coordinate:                   coord,
		IsCurrentLocationPlaceholder: true,
	}
}

// ClearCurrentLocation drops the placeholder, typically after location
// authorization is revoked.
func (m *Manager) ClearCurrentLocation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// CurrentLocation returns the placeholder when one is set.
func (m *Manager) CurrentLocation() (models.SavedPlace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return models.SavedPlace{}, false
	}
	return *m.current, true
}

// Coordinates returns the distinct coordinates the batch refresh should
// cover: the placeholder plus every saved place.
func (m *Manager) Coordinates() []models.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(m.places)+1)
	out := make([]models.Coordinate, 0, len(m.places)+1)
	appendCoord := func(c models.Coordinate) {
		if _, dup := seen[c.Key()]; dup {
			return
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}

	if m.current != nil {
		appendCoord(m.current.Coordinate)
	}
	for _, p := range m.places {
		appendCoord(p.Coordinate)
	}
	return out
}
