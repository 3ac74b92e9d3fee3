// Package prices turns raw listings into clean per-fuel price records,
// filling missing prices from the median of the same city and fuel.
package prices

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// Currency and unit markers seen in upstream price cells. Longer tokens
	// come first so "руб." is removed whole rather than leaving a dot.
	priceNoise = strings.NewReplacer(
		"руб.", "",
		"руб", "",
		"р.", "",
		"р", "",
		"₽", "",
		"/л", "",
		"\u00a0", "",
		"\u202f", "",
		" ", "",
	)

	priceLike = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// ParsePrice converts raw price text such as "59,10 р." to a number. It
// reports false for text that is not a price and for non-positive values,
// both of which count as a missing price.
func ParsePrice(raw string) (float64, bool) {
	s := priceNoise.Replace(strings.ToLower(strings.TrimSpace(raw)))
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSuffix(s, ".")

	if !priceLike.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}

	return v, true
}

// Median returns the median of values, averaging the two middle values for
// an even count. It reports false for an empty slice.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}
