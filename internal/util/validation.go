package util

import (
	"regexp"
)

var (
	uuidRegex  = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

// IsValidClock reports whether s is a 24-hour HH:mm string.
func IsValidClock(s string) bool {
	return clockRegex.MatchString(s)
}
