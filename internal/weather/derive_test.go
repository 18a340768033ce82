package weather

import (
	"testing"
	"time"

	"github.com/publicfarley/simple-weather/internal/models"
)

func dayAt(base time.Time, days int) models.DailyForecast {
	return models.DailyForecast{Date: startOfDay(base).AddDate(0, 0, days)}
}

func hourAt(base time.Time, offset time.Duration, precip float64) models.HourlyForecast {
	return models.HourlyForecast{Time: base.Add(offset), PrecipChance: precip}
}

// TestTrimDailyDropsPastAndCapsAtSeven verifies that daily records before
// the start of today are discarded and that at most seven records survive,
// in chronological order, regardless of input order.
func TestTrimDailyDropsPastAndCapsAtSeven(t *testing.T) {
	base := time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC)

	var daily []models.DailyForecast
	for _, offset := range []int{4, 8, -1, 0, 2, 1, 6, 3, 5, 7} {
		daily = append(daily, dayAt(base, offset))
	}

	got := trimDaily(daily, base)
	if len(got) != 7 {
		t.Fatalf("expected 7 daily records, got %d", len(got))
	}
	for i, d := range got {
		want := startOfDay(base).AddDate(0, 0, i)
		if !d.Date.Equal(want) {
			t.Errorf("record %d: expected date %v, got %v", i, want, d.Date)
		}
	}
}

// TestTrimDailyKeepsTodayAtBoundary verifies that a record dated exactly at
// the start of today is retained.
func TestTrimDailyKeepsTodayAtBoundary(t *testing.T) {
	base := time.Date(2025, 6, 12, 23, 59, 0, 0, time.UTC)

	got := trimDaily([]models.DailyForecast{dayAt(base, 0)}, base)
	if len(got) != 1 {
		t.Fatalf("expected the start-of-today record to survive, got %d records", len(got))
	}
}

// TestTrimHourlyWindowAndCap verifies that hourly records are limited to the
// window from now through the end of today and capped at twelve entries.
func TestTrimHourlyWindowAndCap(t *testing.T) {
	base := time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)

	var hourly []models.HourlyForecast
	for i := -3; i <= 20; i++ {
		hourly = append(hourly, hourAt(base, time.Duration(i)*time.Hour, 0))
	}

	got := trimHourly(hourly, base)
	if len(got) != 12 {
		t.Fatalf("expected 12 hourly records, got %d", len(got))
	}
	if !got[0].Time.Equal(base) {
		t.Errorf("expected first record at now, got %v", got[0].Time)
	}
	if got[len(got)-1].Time.After(startOfDay(base).AddDate(0, 0, 1)) {
		t.Errorf("last record %v is past the end of today", got[len(got)-1].Time)
	}
}

// TestTrimHourlyExcludesNextMidnight verifies that a record stamped exactly
// at next midnight is treated as tomorrow's first hour and excluded, and
// that this holds for the derived precipitation chance too.
func TestTrimHourlyExcludesNextMidnight(t *testing.T) {
	base := time.Date(2025, 6, 12, 22, 0, 0, 0, time.UTC)

	hourly := []models.HourlyForecast{
		hourAt(base, time.Hour, 0.2),   // 23:00, today
		hourAt(base, 2*time.Hour, 0.9), // 00:00 next day
	}

	got := trimHourly(hourly, base)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if !got[0].Time.Equal(base.Add(time.Hour)) {
		t.Errorf("expected only the 23:00 record, got %v", got[0].Time)
	}
	if chance := precipChanceToday(hourly, base); chance != 0.2 {
		t.Errorf("expected chance 0.2 excluding next midnight, got %v", chance)
	}
}

// TestTrimHourlyExcludesPastHours verifies that an hourly record even one
// minute in the past is discarded.
func TestTrimHourlyExcludesPastHours(t *testing.T) {
	base := time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)

	got := trimHourly([]models.HourlyForecast{
		hourAt(base, -time.Minute, 0),
		hourAt(base, time.Hour, 0),
	}, base)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Time.Before(base) {
		t.Errorf("past record survived: %v", got[0].Time)
	}
}

// TestPrecipChanceTodayTakesMax verifies that the derived chance is the
// maximum across the remaining hours of today, ignoring past hours and
// hours belonging to tomorrow.
func TestPrecipChanceTodayTakesMax(t *testing.T) {
	base := time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC)

	hourly := []models.HourlyForecast{
		hourAt(base, -2*time.Hour, 0.95), // past, ignored
		hourAt(base, time.Hour, 0.1),
		hourAt(base, 3*time.Hour, 0.7),
		hourAt(base, 5*time.Hour, 0.3),
		hourAt(base, 30*time.Hour, 0.99), // tomorrow, ignored
	}

	if got := precipChanceToday(hourly, base); got != 0.7 {
		t.Errorf("expected max chance 0.7, got %v", got)
	}
}

// TestPrecipChanceTodayEmptyRemainder verifies that zero remaining hours
// yield a zero chance rather than an error or a stale value.
func TestPrecipChanceTodayEmptyRemainder(t *testing.T) {
	base := time.Date(2025, 6, 12, 23, 30, 0, 0, time.UTC)

	hourly := []models.HourlyForecast{hourAt(base, -4*time.Hour, 0.9)}
	if got := precipChanceToday(hourly, base); got != 0 {
		t.Errorf("expected 0 with no remaining hours, got %v", got)
	}
}
