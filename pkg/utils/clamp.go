package utils

import (
	"math"
	"strconv"
	"strings"
)

// ClampInt parses raw as a number, truncates it toward zero and clamps it
// into [min, max]. An empty raw yields fallback, as does anything that is not
// a finite number. Whitespace-only input counts as zero.
func ClampInt(raw string, min, max, fallback int) int {
	if raw == "" {
		return fallback
	}

	n := 0.0
	if v := strings.TrimSpace(raw); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fallback
		}
		n = math.Trunc(f)
	}

	if n < float64(min) {
		return min
	}
	if n > float64(max) {
		return max
	}
	return int(n)
}
