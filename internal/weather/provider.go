package weather

import (
	"context"
	"errors"

	"github.com/publicfarley/simple-weather/internal/models"
)

// categorizeError maps a provider error onto a bounded metric label value.
func categorizeError(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstreamFailure):
		return "upstream_failure"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// Provider returns weather records for a coordinate. Implementations wrap a
// weather-data vendor; the fetch cache only depends on this contract.
type Provider interface {
	GetCurrent(ctx context.Context, coord models.Coordinate) (models.CurrentConditions, error)
	GetDaily(ctx context.Context, coord models.Coordinate) ([]models.DailyForecast, error)
	GetHourly(ctx context.Context, coord models.Coordinate) ([]models.HourlyForecast, error)
}

var (
	// ErrRateLimited means the vendor rejected the call for quota reasons;
	// retryable after backoff.
	ErrRateLimited = errors.New("weather provider rate limited")

	// ErrUpstreamFailure is a 5xx-class vendor failure; retryable.
	ErrUpstreamFailure = errors.New("weather provider upstream failure")

	// ErrBadResponse means the vendor answered but the payload could not be
	// used; not retryable.
	ErrBadResponse = errors.New("weather provider bad response")
)
