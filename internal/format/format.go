// Package format holds the pure value-normalization helpers shared by the
// catalog use cases. Every function is total: bad input degrades to a zero
// value, never to an error or a panic.
package format

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// CoerceMonetary parses a raw price value into a non-negative amount.
// Accepts numbers and numeric strings in either "12.50" or "12,50" form.
// Anything unparseable (nil, "", "abc") and any negative amount becomes 0.
func CoerceMonetary(value any) float64 {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		if s, ok := value.(string); ok {
			v, err = cast.ToFloat64E(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
		}
		if err != nil {
			return 0
		}
	}
	if v < 0 {
		return 0
	}
	return v
}

// FormatMonetaryDisplay renders a raw price value as a Brazilian currency
// string, e.g. "R$ 12,50". Unparseable input renders as "R$ 0,00".
func FormatMonetaryDisplay(value any) string {
	s := fmt.Sprintf("%.2f", CoerceMonetary(value))
	return "R$ " + strings.Replace(s, ".", ",", 1)
}

// NormalizeText returns the trimmed string form of a value, or "" when the
// value is absent or not representable as a string.
func NormalizeText(value any) string {
	s, err := cast.ToStringE(value)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
