package models

import (
	"fmt"
	"math"
	"time"
)

const earthRadiusMeters = 6371000.0

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key returns the canonical cache key for this coordinate. Coordinates are
// quantized to 4 decimal places (roughly an 11m grid) so GPS jitter maps to
// the same key.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// DistanceMeters returns the great-circle distance to other using the
// haversine formula.
func (c Coordinate) DistanceMeters(other Coordinate) float64 {
	lat1 := c.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - c.Latitude) * math.Pi / 180
	dLon := (other.Longitude - c.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// CachedLocationRecord is the single durable slot holding the last known
// device coordinate. A new capture replaces the previous record; no history
// is kept.
type CachedLocationRecord struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Coordinate returns the record's coordinate.
func (r CachedLocationRecord) Coordinate() Coordinate {
	return Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// StaleAt reports whether the record is older than window at the given time.
// Staleness is one-directional elapsed time: a CapturedAt in the future
// (clock moved backward) counts as fresh, not stale.
func (r CachedLocationRecord) StaleAt(now time.Time, window time.Duration) bool {
	return now.Sub(r.CapturedAt) > window
}

// LocationSource identifies where a resolved coordinate came from.
type LocationSource string

const (
	SourceCached LocationSource = "cached"
	SourceLive   LocationSource = "live"
)

// ResolvedLocation is the authoritative "current location" value the
// reconciler exposes. At most one exists at a time.
type ResolvedLocation struct {
	Coordinate Coordinate     `json:"coordinate"`
	Source     LocationSource `json:"source"`
	CapturedAt time.Time      `json:"capturedAt"`
}

// SavedPlace is a user-saved location. At most one place may carry
// IsCurrentLocationPlaceholder = true, and that place is memory-only: the
// flag is forced false on any durable write.
type SavedPlace struct {
	ID                           string     `json:"id"`
	Name                         string     `json:"name"`
	Coordinate                   Coordinate `json:"coordinate"`
	IsCurrentLocationPlaceholder bool       `json:"isCurrentLocationPlaceholder"`
}
