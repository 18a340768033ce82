package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/publicfarley/simple-weather/internal/models"
	"github.com/publicfarley/simple-weather/internal/observability"
)

// OpenMeteoConfig bundles the HTTP and resilience settings for the client.
type OpenMeteoConfig struct {
	BaseURL string
	APIKey  string // optional; open-meteo's free tier needs none
	Timeout time.Duration

	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMaxElapsed   time.Duration

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// OpenMeteoClient implements Provider against the Open-Meteo forecast API.
// Calls retry with exponential backoff and flow through a circuit breaker so
// a struggling upstream is not hammered.
type OpenMeteoClient struct {
	cfg     OpenMeteoConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewOpenMeteoClient returns a client for the given config. Zero-valued
// resilience settings fall back to conservative defaults.
func NewOpenMeteoClient(cfg OpenMeteoConfig) *OpenMeteoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = 20 * time.Second
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 5
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = time.Minute
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 2 * time.Minute
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
	})

	return &OpenMeteoClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
	}
}

// GetCurrent fetches current conditions for the coordinate.
func (c *OpenMeteoClient) GetCurrent(ctx context.Context, coord models.Coordinate) (models.CurrentConditions, error) {
	params := url.Values{}
	params.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")

	var payload struct {
		Current struct {
			Time               int64   `json:"time"`
			Temperature2m      float64 `json:"temperature_2m"`
			RelativeHumidity2m int     `json:"relative_humidity_2m"`
			WindSpeed10m       float64 `json:"wind_speed_10m"`
			WeatherCode        int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := c.getJSON(ctx, "current", coord, params, &payload); err != nil {
		return models.CurrentConditions{}, err
	}

	return models.CurrentConditions{
		Temperature: payload.Current.Temperature2m,
		Humidity:    payload.Current.RelativeHumidity2m,
		WindSpeed:   payload.Current.WindSpeed10m,
		Conditions:  conditionFromCode(payload.Current.WeatherCode),
		ObservedAt:  time.Unix(payload.Current.Time, 0).UTC(),
	}, nil
}

// GetDaily fetches the daily forecast for the coordinate. Ten days are
// requested so the cache layer can trim to its own window.
func (c *OpenMeteoClient) GetDaily(ctx context.Context, coord models.Coordinate) ([]models.DailyForecast, error) {
	params := url.Values{}
	params.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	params.Set("forecast_days", "10")

	var payload struct {
		Daily struct {
			Time                        []int64   `json:"time"`
			WeatherCode                 []int     `json:"weather_code"`
			Temperature2mMax            []float64 `json:"temperature_2m_max"`
			Temperature2mMin            []float64 `json:"temperature_2m_min"`
			PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
		} `json:"daily"`
	}
	if err := c.getJSON(ctx, "daily", coord, params, &payload); err != nil {
		return nil, err
	}

	d := payload.Daily
	n := len(d.Time)
	if len(d.WeatherCode) != n || len(d.Temperature2mMax) != n || len(d.Temperature2mMin) != n || len(d.PrecipitationProbabilityMax) != n {
		return nil, fmt.Errorf("%w: ragged daily arrays", ErrBadResponse)
	}

	out := make([]models.DailyForecast, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.DailyForecast{
			Date:         time.Unix(d.Time[i], 0).UTC(),
			HighTemp:     d.Temperature2mMax[i],
			LowTemp:      d.Temperature2mMin[i],
			Conditions:   conditionFromCode(d.WeatherCode[i]),
			PrecipChance: d.PrecipitationProbabilityMax[i] / 100,
		})
	}
	return out, nil
}

// GetHourly fetches the hourly forecast for the coordinate. Two days are
// requested so the window spanning the rest of today is always covered.
func (c *OpenMeteoClient) GetHourly(ctx context.Context, coord models.Coordinate) ([]models.HourlyForecast, error) {
	params := url.Values{}
	params.Set("hourly", "temperature_2m,precipitation_probability,weather_code")
	params.Set("forecast_days", "2")

	var payload struct {
		Hourly struct {
			Time                     []int64   `json:"time"`
			Temperature2m            []float64 `json:"temperature_2m"`
			PrecipitationProbability []float64 `json:"precipitation_probability"`
			WeatherCode              []int     `json:"weather_code"`
		} `json:"hourly"`
	}
	if err := c.getJSON(ctx, "hourly", coord, params, &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	n := len(h.Time)
	if len(h.Temperature2m) != n || len(h.PrecipitationProbability) != n || len(h.WeatherCode) != n {
		return nil, fmt.Errorf("%w: ragged hourly arrays", ErrBadResponse)
	}

	out := make([]models.HourlyForecast, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.HourlyForecast{
			Time:         time.Unix(h.Time[i], 0).UTC(),
			Temperature:  h.Temperature2m[i],
			Conditions:   conditionFromCode(h.WeatherCode[i]),
			PrecipChance: h.PrecipitationProbability[i] / 100,
		})
	}
	return out, nil
}

// getJSON performs one API call with retries, backoff, and the circuit
// breaker, decoding the body into out.
func (c *OpenMeteoClient) getJSON(ctx context.Context, call string, coord models.Coordinate, params url.Values, out any) error {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid provider URL: %w", err)
	}
	params.Set("latitude", fmt.Sprintf("%.4f", coord.Latitude))
	params.Set("longitude", fmt.Sprintf("%.4f", coord.Longitude))
	params.Set("timeformat", "unixtime")
	params.Set("timezone", "UTC")
	if c.cfg.APIKey != "" {
		params.Set("apikey", c.cfg.APIKey)
	}
	base.RawQuery = params.Encode()
	reqURL := base.String()

	start := time.Now()
	var body []byte
	var attempt int

	operation := func() error {
		if attempt > 0 {
			observability.WeatherProviderRetriesTotal.Inc()
		}
		attempt++

		result, err := c.breaker.Execute(func() (any, error) {
			return c.roundTrip(ctx, reqURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: circuit open", ErrUpstreamFailure))
			}
			if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		body = result.([]byte)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitialDelay
	bo.MaxInterval = c.cfg.RetryMaxDelay
	bo.MaxElapsedTime = c.cfg.RetryMaxElapsed
	err = backoff.Retry(operation, backoff.WithContext(bo, ctx))

	duration := time.Since(start).Seconds()
	status := categorizeError(err)
	observability.WeatherProviderCallsTotal.WithLabelValues(call, status).Inc()
	observability.WeatherProviderDuration.WithLabelValues(call, status).Observe(duration)
	if err != nil {
		return fmt.Errorf("openmeteo %s: %w", call, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

// roundTrip performs a single HTTP round-trip and classifies the status.
func (c *OpenMeteoClient) roundTrip(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrBadResponse, resp.StatusCode, b)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// conditionFromCode maps WMO weather codes to display strings (simplified).
func conditionFromCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code >= 1 && code <= 3:
		return "cloudy"
	case code == 45 || code == 48:
		return "fog"
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return "rain"
	case code >= 71 && code <= 77 || code == 85 || code == 86:
		return "snow"
	case code >= 95:
		return "storm"
	default:
		return "unknown"
	}
}
