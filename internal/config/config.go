package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the process configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMaxElapsed   time.Duration

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration

	// Freshness windows for the two caches.
	LocationFreshness time.Duration
	WeatherFreshness  time.Duration

	// Distance below which a live fix does not supersede a cached coordinate.
	SupersedeDistanceMeters float64

	// Ceiling on waiting for a live location fix.
	FixTimeout time.Duration

	// How long a caller waits on a coalesced in-flight fetch.
	CoalesceTimeout time.Duration

	DatabasePath string

	// Interval for the background refresh of all saved places (0 = disabled).
	RefreshInterval time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Provider struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
		Retry   struct {
			InitialDelay string `yaml:"initial_delay"`
			MaxDelay     string `yaml:"max_delay"`
			MaxElapsed   string `yaml:"max_elapsed"`
		} `yaml:"retry"`
		Breaker struct {
			MaxRequests int    `yaml:"max_requests"`
			Interval    string `yaml:"interval"`
			Timeout     string `yaml:"timeout"`
		} `yaml:"breaker"`
	} `yaml:"provider"`

	Freshness struct {
		Location string `yaml:"location"`
		Weather  string `yaml:"weather"`
	} `yaml:"freshness"`

	Location struct {
		SupersedeDistanceMeters float64 `yaml:"supersede_distance_meters"`
		FixTimeout              string  `yaml:"fix_timeout"`
	} `yaml:"location"`

	Cache struct {
		CoalesceTimeout string `yaml:"coalesce_timeout"`
	} `yaml:"cache"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Refresh struct {
		Interval string `yaml:"interval"`
	} `yaml:"refresh"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) plus env
// overrides. A local .env file is applied first when present. A missing
// config file is not an error; defaults cover every field.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ProviderBaseURL = fc.Provider.BaseURL
	if cfg.ProviderBaseURL == "" {
		cfg.ProviderBaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.ProviderAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.ProviderTimeout = parseDuration(fc.Provider.Timeout, 5*time.Second)

	cfg.RetryInitialDelay = parseDuration(fc.Provider.Retry.InitialDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Provider.Retry.MaxDelay, 5*time.Second)
	cfg.RetryMaxElapsed = parseDuration(fc.Provider.Retry.MaxElapsed, 20*time.Second)

	cfg.BreakerMaxRequests = 5
	if fc.Provider.Breaker.MaxRequests > 0 {
		cfg.BreakerMaxRequests = uint32(fc.Provider.Breaker.MaxRequests)
	}
	cfg.BreakerInterval = parseDuration(fc.Provider.Breaker.Interval, time.Minute)
	cfg.BreakerTimeout = parseDuration(fc.Provider.Breaker.Timeout, 2*time.Minute)

	cfg.LocationFreshness = parseDuration(fc.Freshness.Location, 24*time.Hour)
	cfg.WeatherFreshness = parseDuration(fc.Freshness.Weather, 30*time.Minute)

	cfg.SupersedeDistanceMeters = fc.Location.SupersedeDistanceMeters
	if cfg.SupersedeDistanceMeters <= 0 {
		cfg.SupersedeDistanceMeters = 1000
	}
	cfg.FixTimeout = parseDuration(fc.Location.FixTimeout, 8*time.Second)

	cfg.CoalesceTimeout = parseDuration(fc.Cache.CoalesceTimeout, 15*time.Second)

	cfg.DatabasePath = strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = fc.Store.Path
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/simple-weather.db"
	}

	cfg.RefreshInterval = parseDurationOrZero(fc.Refresh.Interval, 15*time.Minute)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty
// string or parse error. Zero and negative values pass through; the refresh
// interval uses 0 to mean disabled.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.ProviderTimeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if cfg.LocationFreshness <= 0 {
		return fmt.Errorf("freshness.location must be positive")
	}
	if cfg.WeatherFreshness <= 0 {
		return fmt.Errorf("freshness.weather must be positive")
	}
	if cfg.FixTimeout <= 0 {
		return fmt.Errorf("location.fix_timeout must be positive")
	}
	if cfg.CoalesceTimeout <= cfg.ProviderTimeout {
		// A coalesced waiter must outlive the provider call it is waiting on.
		cfg.CoalesceTimeout = cfg.ProviderTimeout + 5*time.Second
	}
	return nil
}
