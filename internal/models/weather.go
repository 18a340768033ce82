package models

import "time"

// CurrentConditions describes the weather at a coordinate right now.
// PrecipChanceToday is derived from the hourly forecast: the maximum
// precipitation chance across the remaining hours of today, not an average.
type CurrentConditions struct {
	Temperature       float64   `json:"temperature"`
	Humidity          int       `json:"humidity"`
	WindSpeed         float64   `json:"windSpeed"`
	Conditions        string    `json:"conditions"`
	PrecipChanceToday float64   `json:"precipChanceToday"`
	ObservedAt        time.Time `json:"observedAt"`
}

// DailyForecast is one day of forecast data.
type DailyForecast struct {
	Date         time.Time `json:"date"`
	HighTemp     float64   `json:"highTemp"`
	LowTemp      float64   `json:"lowTemp"`
	Conditions   string    `json:"conditions"`
	PrecipChance float64   `json:"precipChance"`
}

// HourlyForecast is one hour of forecast data.
type HourlyForecast struct {
	Time         time.Time `json:"time"`
	Temperature  float64   `json:"temperature"`
	Conditions   string    `json:"conditions"`
	PrecipChance float64   `json:"precipChance"`
}

// WeatherSnapshot bundles current conditions with the trimmed daily and
// hourly forecasts for one coordinate. Daily holds at most 7 entries
// starting from today; Hourly holds at most 12 entries starting from now.
// Both are sorted ascending by time.
type WeatherSnapshot struct {
	Coordinate  Coordinate       `json:"coordinate"`
	Current     CurrentConditions `json:"current"`
	Daily       []DailyForecast  `json:"daily"`
	Hourly      []HourlyForecast `json:"hourly"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// FreshAt reports whether the snapshot is still within window at the given
// time. Like location staleness this is one-directional: a LastUpdated in
// the future counts as fresh.
func (s WeatherSnapshot) FreshAt(now time.Time, window time.Duration) bool {
	return now.Sub(s.LastUpdated) <= window
}
