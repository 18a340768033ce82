package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/publicfarley/simple-weather/internal/models"
)

// mockRecordStore is an in-memory RecordStore for cache and reconciler tests.
type mockRecordStore struct {
	mu        sync.Mutex
	loc       *models.CachedLocationRecord
	places    map[string]models.SavedPlace
	putCalls  int
	getErr    error
	putErr    error
	deleteErr error
}

func (m *mockRecordStore) PutCachedLocation(ctx context.Context, rec models.CachedLocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.putCalls++
	m.loc = &rec
	return nil
}

func (m *mockRecordStore) GetCachedLocation(ctx context.Context) (models.CachedLocationRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return models.CachedLocationRecord{}, false, m.getErr
	}
	if m.loc == nil {
		return models.CachedLocationRecord{}, false, nil
	}
	return *m.loc, true, nil
}

func (m *mockRecordStore) DeleteCachedLocation(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.loc = nil
	return nil
}

func (m *mockRecordStore) SavePlace(ctx context.Context, p models.SavedPlace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.places == nil {
		m.places = make(map[string]models.SavedPlace)
	}
	p.IsCurrentLocationPlaceholder = false
	m.places[p.ID] = p
	return nil
}

func (m *mockRecordStore) DeletePlace(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.places, id)
	return nil
}

func (m *mockRecordStore) ListPlaces(ctx context.Context) ([]models.SavedPlace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SavedPlace
	for _, p := range m.places {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRecordStore) Close() error { return nil }

func (m *mockRecordStore) cachedLocation() *models.CachedLocationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loc
}

func (m *mockRecordStore) storeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putCalls
}

// TestCache_FreshnessBoundary verifies the 24-hour window: a record just
// inside the window is returned, a record just outside is treated as a miss
// and evicted from durable storage.
func TestCache_FreshnessBoundary(t *testing.T) {
	ctx := context.Background()
	capturedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	coord := models.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	tests := []struct {
		name    string
		readAt  time.Time
		wantHit bool
	}{
		{"one second inside window", capturedAt.Add(24*time.Hour - time.Second), true},
		{"one second outside window", capturedAt.Add(24*time.Hour + time.Second), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := &mockRecordStore{loc: &models.CachedLocationRecord{
				Latitude: coord.Latitude, Longitude: coord.Longitude, CapturedAt: capturedAt,
			}}
			c := NewCache(st, 24*time.Hour, zap.NewNop())
			c.now = func() time.Time { return tc.readAt }

			got, ok := c.Retrieve(ctx)
			if ok != tc.wantHit {
				t.Fatalf("Retrieve() ok = %v, want %v", ok, tc.wantHit)
			}
			if tc.wantHit {
				if got != coord {
					t.Errorf("Retrieve() = %+v, want %+v", got, coord)
				}
				if st.cachedLocation() == nil {
					t.Error("fresh record should remain in store")
				}
			} else if st.cachedLocation() != nil {
				t.Error("stale record should be evicted on retrieval")
			}
		})
	}
}

// TestCache_Store verifies that Store replaces the slot with a fresh
// timestamp from the cache clock.
func TestCache_Store(t *testing.T) {
	ctx := context.Background()
	st := &mockRecordStore{}
	c := NewCache(st, 24*time.Hour, zap.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Store(ctx, models.Coordinate{Latitude: 51.5074, Longitude: -0.1278})

	rec := st.cachedLocation()
	if rec == nil {
		t.Fatal("Store() did not write the slot")
	}
	if rec.Latitude != 51.5074 || !rec.CapturedAt.Equal(now) {
		t.Errorf("stored record = %+v, want lat 51.5074 capturedAt %v", rec, now)
	}
}

// TestCache_Store_SwallowsPersistenceErrors verifies that a failing durable
// write is not surfaced to the caller.
func TestCache_Store_SwallowsPersistenceErrors(t *testing.T) {
	ctx := context.Background()
	st := &mockRecordStore{putErr: context.DeadlineExceeded}
	c := NewCache(st, 24*time.Hour, zap.NewNop())

	// Must not panic or propagate; the API surface has no error return.
	c.Store(ctx, models.Coordinate{Latitude: 1, Longitude: 2})

	if st.cachedLocation() != nil {
		t.Error("failed write should leave slot empty")
	}
}

// TestCache_Clear verifies unconditional deletion.
func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	st := &mockRecordStore{loc: &models.CachedLocationRecord{CapturedAt: time.Now()}}
	c := NewCache(st, 24*time.Hour, zap.NewNop())

	c.Clear(ctx)
	if st.cachedLocation() != nil {
		t.Error("Clear() should delete the slot")
	}
}
