package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// monthAbbrev maps the three-letter month abbreviations used by broker
// screenshots ("Jul-18-2025") to month numbers.
var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// NormalizeExpiry converts a human-readable expiry into ISO YYYY-MM-DD.
// ISO input passes through unchanged. "Mon-DD-YYYY" forms are converted via
// the month-abbreviation table. Anything else is returned as-is with
// ok=false so the caller can flag it as unparsed instead of dropping it.
func NormalizeExpiry(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw, false
	}

	// Already ISO.
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02"), true
	}

	// Mon-DD-YYYY, e.g. "Jul-18-2025".
	parts := strings.Split(s, "-")
	if len(parts) == 3 {
		month, ok := monthAbbrev[strings.ToLower(parts[0])]
		if ok {
			day, dayErr := strconv.Atoi(parts[1])
			year, yearErr := strconv.Atoi(parts[2])
			if dayErr == nil && yearErr == nil && day >= 1 && day <= 31 && year >= 1970 {
				// Round-trip through time.Date to reject things like Feb-30.
				t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
				if t.Day() == day && t.Month() == month {
					return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day), true
				}
			}
		}
	}

	return raw, false
}
