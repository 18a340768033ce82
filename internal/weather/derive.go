package weather

import (
	"sort"
	"time"

	"github.com/publicfarley/simple-weather/internal/models"
)

const (
	maxDailyEntries  = 7
	maxHourlyEntries = 12
)

// trimDaily filters daily records to dates on or after the start of today
// and keeps the first seven chronologically.
func trimDaily(daily []models.DailyForecast, now time.Time) []models.DailyForecast {
	out := make([]models.DailyForecast, 0, maxDailyEntries)
	startOfDay := startOfDay(now)
	for _, d := range sortedDaily(daily) {
		if d.Date.Before(startOfDay) {
			continue
		}
		out = append(out, d)
		if len(out) == maxDailyEntries {
			break
		}
	}
	return out
}

// trimHourly filters hourly records to the window from now through the end
// of today and keeps the first twelve.
func trimHourly(hourly []models.HourlyForecast, now time.Time) []models.HourlyForecast {
	out := make([]models.HourlyForecast, 0, maxHourlyEntries)
	for _, h := range remainingToday(hourly, now) {
		out = append(out, h)
		if len(out) == maxHourlyEntries {
			break
		}
	}
	return out
}

// precipChanceToday returns the maximum precipitation chance across the
// hourly records between now and the end of today. The maximum, not the
// average, so a single rainy hour still shows up.
func precipChanceToday(hourly []models.HourlyForecast, now time.Time) float64 {
	var max float64
	for _, h := range remainingToday(hourly, now) {
		if h.PrecipChance > max {
			max = h.PrecipChance
		}
	}
	return max
}

// remainingToday returns the chronologically sorted hourly records with
// timestamps >= now and before the start of tomorrow. An entry stamped
// exactly at next midnight is tomorrow's first hour, not today's last.
func remainingToday(hourly []models.HourlyForecast, now time.Time) []models.HourlyForecast {
	startOfTomorrow := startOfDay(now).AddDate(0, 0, 1)
	out := make([]models.HourlyForecast, 0, len(hourly))
	for _, h := range sortedHourly(hourly) {
		if h.Time.Before(now) || !h.Time.Before(startOfTomorrow) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sortedDaily(daily []models.DailyForecast) []models.DailyForecast {
	out := append([]models.DailyForecast{}, daily...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func sortedHourly(hourly []models.HourlyForecast) []models.HourlyForecast {
	out := append([]models.HourlyForecast{}, hourly...)
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
