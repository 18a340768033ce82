package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrNameEmpty is returned when a place name is empty or whitespace-only after trim.
var ErrNameEmpty = errors.New("place name is required")

// ErrNameTooLong is returned when a place name length exceeds the maximum.
var ErrNameTooLong = errors.New("place name too long")

// ErrNameInvalidChars is returned when a place name contains disallowed characters.
var ErrNameInvalidChars = errors.New("place name contains invalid characters")

// ErrLatitudeOutOfRange is returned for latitudes outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned for longitudes outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ValidatePlaceName trims the input, enforces the length bound (maxLen in
// runes), and restricts to allowed characters: letters (Unicode), digits,
// space, comma, hyphen, apostrophe, period. Returns the trimmed string or
// an error suitable for 400 INVALID_NAME responses.
func ValidatePlaceName(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrNameEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrNameInvalidChars
		}
	}
	return s, nil
}

// ValidateCoordinate checks latitude and longitude against their WGS84
// ranges.
func ValidateCoordinate(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return ErrLatitudeOutOfRange
	}
	if lon < -180 || lon > 180 {
		return ErrLongitudeOutOfRange
	}
	return nil
}

// isAllowedNameRune returns true for letters (Unicode), digits, space,
// comma, hyphen, apostrophe, period.
func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '\'', '.':
		return true
	}
	return false
}
