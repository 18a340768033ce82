package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/publicfarley/simple-weather/internal/models"
)

// mockWeatherProvider serves canned data and can fail selectively per
// coordinate key or per sub-fetch.
type mockWeatherProvider struct {
	mu           sync.Mutex
	currentCalls int
	delay        time.Duration
	failKeys     map[string]error
	hourlyErr    error
	current      models.CurrentConditions
	daily        []models.DailyForecast
	hourly       []models.HourlyForecast
}

func (m *mockWeatherProvider) snapshotFields(coord models.Coordinate) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay, m.failKeys[coord.Key()]
}

func (m *mockWeatherProvider) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockWeatherProvider) GetCurrent(ctx context.Context, coord models.Coordinate) (models.CurrentConditions, error) {
	m.mu.Lock()
	m.currentCalls++
	m.mu.Unlock()

	delay, err := m.snapshotFields(coord)
	if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
		return models.CurrentConditions{}, sleepErr
	}
	if err != nil {
		return models.CurrentConditions{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *mockWeatherProvider) GetDaily(ctx context.Context, coord models.Coordinate) ([]models.DailyForecast, error) {
	delay, err := m.snapshotFields(coord)
	if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
		return nil, sleepErr
	}
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.daily, nil
}

func (m *mockWeatherProvider) GetHourly(ctx context.Context, coord models.Coordinate) ([]models.HourlyForecast, error) {
	delay, err := m.snapshotFields(coord)
	if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
		return nil, sleepErr
	}
	m.mu.Lock()
	hourlyErr := m.hourlyErr
	m.mu.Unlock()
	if err == nil {
		err = hourlyErr
	}
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hourly, nil
}

func (m *mockWeatherProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentCalls
}

var testBase = time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)

func newTestProvider() *mockWeatherProvider {
	return &mockWeatherProvider{
		failKeys: make(map[string]error),
		current:  models.CurrentConditions{Temperature: 21.5, Conditions: "cloudy"},
		daily: []models.DailyForecast{
			{Date: startOfDay(testBase), HighTemp: 24},
			{Date: startOfDay(testBase).AddDate(0, 0, 1), HighTemp: 22},
		},
		hourly: []models.HourlyForecast{
			{Time: testBase.Add(time.Hour), PrecipChance: 0.2},
			{Time: testBase.Add(3 * time.Hour), PrecipChance: 0.8},
			{Time: testBase.Add(30 * time.Hour), PrecipChance: 0.99},
		},
	}
}

// newTestFetchCache wires a FetchCache to a controllable clock. Tests move
// time by writing through the returned pointer.
func newTestFetchCache(p Provider) (*FetchCache, *time.Time) {
	fc := NewFetchCache(p, 30*time.Minute, 2*time.Second, zap.NewNop())
	clock := testBase
	fc.now = func() time.Time { return clock }
	return fc, &clock
}

// TestFetchCachesSnapshot verifies that a second fetch for the same
// coordinate is served from the cache without another provider round-trip,
// and that the derived precipitation chance rides on the current conditions.
func TestFetchCachesSnapshot(t *testing.T) {
	provider := newTestProvider()
	fc, _ := newTestFetchCache(provider)
	coord := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	snap, err := fc.Fetch(context.Background(), coord)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if snap.Current.PrecipChanceToday != 0.8 {
		t.Errorf("expected derived precip chance 0.8, got %v", snap.Current.PrecipChanceToday)
	}
	if len(snap.Daily) != 2 || len(snap.Hourly) != 2 {
		t.Errorf("expected 2 daily and 2 hourly records, got %d/%d", len(snap.Daily), len(snap.Hourly))
	}

	if _, err := fc.Fetch(context.Background(), coord); err != nil {
		t.Fatalf("unexpected second fetch error: %v", err)
	}
	if provider.calls() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls())
	}
}

// TestFetchFreshnessBoundary verifies the freshness window edge: a snapshot
// aged exactly the window is still served from cache, one second past the
// window triggers a new provider fetch.
func TestFetchFreshnessBoundary(t *testing.T) {
	provider := newTestProvider()
	fc, clock := newTestFetchCache(provider)
	coord := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	if _, err := fc.Fetch(context.Background(), coord); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	*clock = testBase.Add(30 * time.Minute)
	if _, err := fc.Fetch(context.Background(), coord); err != nil {
		t.Fatalf("unexpected fetch error at boundary: %v", err)
	}
	if provider.calls() != 1 {
		t.Errorf("expected cached snapshot at exactly the window, got %d provider calls", provider.calls())
	}

	*clock = testBase.Add(30*time.Minute + time.Second)
	if _, err := fc.Fetch(context.Background(), coord); err != nil {
		t.Fatalf("unexpected fetch error past boundary: %v", err)
	}
	if provider.calls() != 2 {
		t.Errorf("expected a new provider call past the window, got %d calls", provider.calls())
	}
}

// TestFetchAllOrNothing verifies that one failing sub-fetch fails the whole
// fetch and leaves the cache unmutated, so the next attempt goes back to
// the provider.
func TestFetchAllOrNothing(t *testing.T) {
	provider := newTestProvider()
	provider.hourlyErr = errors.New("hourly endpoint down")
	fc, _ := newTestFetchCache(provider)
	coord := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	if _, err := fc.Fetch(context.Background(), coord); err == nil {
		t.Fatal("expected fetch to fail when one sub-fetch fails")
	}

	provider.mu.Lock()
	provider.hourlyErr = nil
	provider.mu.Unlock()

	if _, err := fc.Fetch(context.Background(), coord); err != nil {
		t.Fatalf("unexpected fetch error after recovery: %v", err)
	}
	if provider.calls() != 2 {
		t.Errorf("expected the failed fetch to cache nothing, got %d provider calls", provider.calls())
	}
}

// TestStoreSnapshotKeepsNewer verifies the version check: a late write
// carrying an older LastUpdated never replaces a newer cached snapshot.
func TestStoreSnapshotKeepsNewer(t *testing.T) {
	fc, _ := newTestFetchCache(newTestProvider())
	coord := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	newer := models.WeatherSnapshot{Coordinate: coord, LastUpdated: testBase}
	older := models.WeatherSnapshot{Coordinate: coord, LastUpdated: testBase.Add(-time.Minute)}

	fc.storeSnapshot(newer)
	fc.storeSnapshot(older)

	got, ok := fc.lookup(coord.Key())
	if !ok {
		t.Fatal("expected a cached snapshot")
	}
	if !got.LastUpdated.Equal(testBase) {
		t.Errorf("older snapshot overwrote newer: got LastUpdated %v", got.LastUpdated)
	}
}

// TestConcurrentFetchesCoalesce verifies that simultaneous fetches for the
// same coordinate share one in-flight provider fetch.
func TestConcurrentFetchesCoalesce(t *testing.T) {
	provider := newTestProvider()
	provider.delay = 50 * time.Millisecond
	fc, _ := newTestFetchCache(provider)
	coord := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fc.Fetch(context.Background(), coord); err != nil {
				t.Errorf("unexpected fetch error: %v", err)
			}
		}()
	}
	wg.Wait()

	if provider.calls() != 1 {
		t.Errorf("expected 1 coalesced provider call, got %d", provider.calls())
	}
}

// TestFetchBatchPartialFailure verifies that a failing coordinate is
// omitted from the batch result while the remaining coordinates still
// resolve.
func TestFetchBatchPartialFailure(t *testing.T) {
	provider := newTestProvider()
	fc, _ := newTestFetchCache(provider)

	good1 := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}
	good2 := models.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	bad := models.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
	provider.failKeys[bad.Key()] = errors.New("upstream unavailable")

	results := fc.FetchBatch(context.Background(), []models.Coordinate{good1, bad, good2})
	if len(results) != 2 {
		t.Fatalf("expected 2 successful results, got %d", len(results))
	}
	if _, ok := results[bad.Key()]; ok {
		t.Error("failing coordinate should be omitted from results")
	}
	for _, coord := range []models.Coordinate{good1, good2} {
		if _, ok := results[coord.Key()]; !ok {
			t.Errorf("missing result for %s", coord.Key())
		}
	}
}

// TestRefreshPublishesSuccess verifies the interactive path: a successful
// refresh publishes all three record sets at once.
func TestRefreshPublishesSuccess(t *testing.T) {
	fc, _ := newTestFetchCache(newTestProvider())
	coord := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	if err := fc.Refresh(context.Background(), coord); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	state := fc.State()
	if state.Phase != FetchSuccess {
		t.Fatalf("expected success phase, got %s", state.Phase)
	}
	if state.Current == nil || len(state.Daily) == 0 || len(state.Hourly) == 0 {
		t.Error("expected current, daily and hourly to be populated together")
	}
	if state.Err != nil {
		t.Errorf("unexpected state error: %v", state.Err)
	}
}

// TestRefreshFailureLeavesDataEmpty verifies that a failed refresh clears
// previously displayed data instead of pairing it with the error.
func TestRefreshFailureLeavesDataEmpty(t *testing.T) {
	provider := newTestProvider()
	fc, clock := newTestFetchCache(provider)
	coord := models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	if err := fc.Refresh(context.Background(), coord); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	// Expire the cached snapshot and fail the provider so the next refresh
	// has to go upstream and lose.
	*clock = testBase.Add(time.Hour)
	provider.mu.Lock()
	provider.failKeys[coord.Key()] = errors.New("upstream unavailable")
	provider.mu.Unlock()

	if err := fc.Refresh(context.Background(), coord); err == nil {
		t.Fatal("expected refresh to fail")
	}

	state := fc.State()
	if state.Phase != FetchFailed {
		t.Fatalf("expected failed phase, got %s", state.Phase)
	}
	if state.Current != nil || len(state.Daily) != 0 || len(state.Hourly) != 0 {
		t.Error("failed refresh should not retain previously displayed data")
	}
	if state.Err == nil {
		t.Error("expected state error to be set")
	}
}
