package insight

import (
	"strconv"
	"strings"
)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

// ParsePrice converts a price string as a model or listing writes it
// ("$1,250.00", "1800 EUR", "2,495") into a typed entry. Unparsable input
// returns ok=false so callers can drop it.
func ParsePrice(raw string) (PriceEntry, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return PriceEntry{}, false
	}

	var currency string
	for sym, code := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			currency = code
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			break
		}
	}

	// Trailing ISO code, e.g. "1800 EUR".
	if fields := strings.Fields(s); len(fields) == 2 && len(fields[1]) == 3 {
		code := strings.ToUpper(fields[1])
		if isAlpha(code) {
			if currency == "" {
				currency = code
			}
			s = fields[0]
		}
	}

	s = strings.ReplaceAll(s, ",", "")
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return PriceEntry{}, false
	}
	return PriceEntry{Value: value, Currency: currency}, true
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
