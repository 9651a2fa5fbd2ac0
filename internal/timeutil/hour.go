package timeutil

import (
	"strings"
	"time"
)

// hourLayouts are tried in order. 12-hour forms come first because that is
// how the incident dataset records time.
var hourLayouts = []string{
	"3:04:05 PM",
	"3:04 PM",
	"15:04:05",
	"15:04",
}

// ParseHour extracts the hour of day (0-23) from a time-of-day string such
// as "02:15:00 PM" or "14:15". The meridiem is matched case-insensitively.
func ParseHour(text string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return 0, false
	}
	for _, layout := range hourLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), true
		}
	}
	return 0, false
}

// DefaultHour is the fallback hour shared by training and serving when no
// other default is configured.
const DefaultHour = 12

// HourNormalizer converts free-form time text into an hour, falling back to
// a fixed default so the same input always yields the same hour.
type HourNormalizer struct {
	// Default is returned for empty or unparseable input. Values outside
	// 0-23 are wrapped into range.
	Default int
}

// Hour returns the parsed hour of text, or the default.
func (n HourNormalizer) Hour(text string) int {
	h, _ := n.Resolve(text)
	return h
}

// Resolve is Hour plus whether the text parsed.
func (n HourNormalizer) Resolve(text string) (int, bool) {
	if h, ok := ParseHour(text); ok {
		return h, true
	}
	d := n.Default % 24
	if d < 0 {
		d += 24
	}
	return d, false
}
