package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountJunk = regexp.MustCompile(`[^0-9+\-.,]`)

// ParseAmount converts a portal currency cell into a decimal. It tolerates
// non-breaking spaces, thousands separators and a comma decimal mark
// ("1.234,56" and "1234,56" both parse to 1234.56). An empty cell is zero;
// anything else that does not normalize to a number is an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(s, " ", " ")
	clean = amountJunk.ReplaceAllString(strings.TrimSpace(clean), "")
	if clean == "" {
		return decimal.Zero, nil
	}

	if strings.Contains(clean, ".") && strings.Contains(clean, ",") {
		// '.' as thousands separator, ',' as decimal mark
		clean = strings.ReplaceAll(clean, ".", "")
	}
	clean = strings.ReplaceAll(clean, ",", ".")
	clean = strings.TrimPrefix(clean, "+")

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
