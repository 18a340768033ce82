package validation

import (
	"errors"
	"testing"
)

// TestValidatePlaceName covers trimming, length bounds, and the allowed
// character set.
func TestValidatePlaceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		want    string
		wantErr error
	}{
		{"simple", "Home", 64, "Home", nil},
		{"trimmed", "  Work  ", 64, "Work", nil},
		{"unicode letters", "Zürich", 64, "Zürich", nil},
		{"punctuation", "St. John's, NL", 64, "St. John's, NL", nil},
		{"empty", "", 64, "", ErrNameEmpty},
		{"whitespace only", "   ", 64, "", ErrNameEmpty},
		{"too long", "abcdefghij", 5, "", ErrNameTooLong},
		{"disallowed chars", "Home<script>", 64, "", ErrNameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePlaceName(tt.input, tt.maxLen)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestValidateCoordinate covers the WGS84 range boundaries.
func TestValidateCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantErr  error
	}{
		{"origin", 0, 0, nil},
		{"extremes", 90, 180, nil},
		{"negative extremes", -90, -180, nil},
		{"latitude too high", 90.0001, 0, ErrLatitudeOutOfRange},
		{"latitude too low", -90.0001, 0, ErrLatitudeOutOfRange},
		{"longitude too high", 0, 180.0001, ErrLongitudeOutOfRange},
		{"longitude too low", 0, -180.0001, ErrLongitudeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateCoordinate(tt.lat, tt.lon); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
