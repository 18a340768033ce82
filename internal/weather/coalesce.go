package weather

import (
	"context"
	"sync"
	"time"

	"github.com/publicfarley/simple-weather/internal/models"
)

// inFlightFetch tracks a single provider fetch that multiple callers may
// wait for.
type inFlightFetch struct {
	mu      sync.Mutex
	result  models.WeatherSnapshot
	err     error
	done    bool
	waiters []chan struct{}
}

// fetchCoalescer keeps at most one provider fetch in flight per cache key.
// Concurrent callers for the same key wait for the first fetch's result
// instead of issuing duplicates.
type fetchCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightFetch
	timeout  time.Duration
}

func newFetchCoalescer(timeout time.Duration) *fetchCoalescer {
	return &fetchCoalescer{
		inFlight: make(map[string]*inFlightFetch),
		timeout:  timeout,
	}
}

// Do returns the result of an already in-flight fetch for key, or executes
// fn as the new in-flight fetch. The wait is bounded by the coalescer
// timeout and the caller's context.
func (fc *fetchCoalescer) Do(ctx context.Context, key string, fn func() (models.WeatherSnapshot, error)) (models.WeatherSnapshot, error) {
	fc.mu.Lock()
	if req, exists := fc.inFlight[key]; exists {
		fc.mu.Unlock()
		return fc.wait(ctx, req)
	}

	req := &inFlightFetch{}
	fc.inFlight[key] = req
	fc.mu.Unlock()

	go func() {
		result, err := fn()

		req.mu.Lock()
		req.result = result
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		fc.mu.Lock()
		delete(fc.inFlight, key)
		fc.mu.Unlock()
	}()

	return fc.wait(ctx, req)
}

// wait blocks until req completes, the context is cancelled, or the
// coalescer timeout fires.
func (fc *fetchCoalescer) wait(ctx context.Context, req *inFlightFetch) (models.WeatherSnapshot, error) {
	req.mu.Lock()
	if req.done {
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, err
	}
	notify := make(chan struct{})
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	select {
	case <-notify:
		req.mu.Lock()
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, err
	case <-waitCtx.Done():
		return models.WeatherSnapshot{}, waitCtx.Err()
	}
}
