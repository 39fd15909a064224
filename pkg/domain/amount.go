package domain

import (
	"strconv"
	"strings"
)

// Amount is a monetary value that tolerates legacy payloads in which numbers
// were persisted as strings. Unparseable values deserialize to zero; typed
// callers can only produce valid amounts, so the coercion is confined to the
// serialization boundary.
type Amount float64

// Float64 returns the amount as a plain float.
func (a Amount) Float64() float64 { return float64(a) }

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON number, a quoted numeric string, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "" || text == "null" {
		*a = 0
		return nil
	}
	if strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) >= 2 {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = Amount(parsed)
	return nil
}

// ParseAmount coerces an arbitrary value into an Amount the same way the
// serialization boundary does: numbers pass through, numeric strings parse,
// anything else is zero.
func ParseAmount(value any) Amount {
	switch v := value.(type) {
	case Amount:
		return v
	case float64:
		return Amount(v)
	case float32:
		return Amount(v)
	case int:
		return Amount(v)
	case int64:
		return Amount(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return Amount(parsed)
	default:
		return 0
	}
}
