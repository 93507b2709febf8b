package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Raw extractor output is duck-typed: a strike can arrive as 63, "63",
// "$63.00" or "Unknown". Every field read from that boundary goes through
// one of these parse-or-default helpers, never a bare cast.

// floatFrom coerces an untyped raw value into a float64. The second return
// is false for nil, empty strings, placeholder text ("Unknown", "-", "N/A"),
// and anything else that does not parse as a finite number.
func floatFrom(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return floatFrom(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return floatFrom(f)
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatFrom(f)
	default:
		return 0, false
	}
}

// intFrom coerces an untyped raw value into an int, truncating fractional
// parts the way broker exports sometimes render contract counts ("-4.0").
func intFrom(v any) (int, bool) {
	f, ok := floatFrom(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// CanonicalSymbol uppercases and trims a ticker symbol.
func CanonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// stringFrom coerces an untyped raw value into a trimmed string.
func stringFrom(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}
