// Package timespan parses compact duration selectors like "1d2h30m".
package timespan

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tokenPattern = regexp.MustCompile(`(\d+)([dhm])`)

// Parse extracts every (integer)(unit) token with unit in d/h/m
// (case-insensitive) and sums them. Unmatched substrings are ignored, so
// "abc1h" still yields one hour. Returns false when no token matches —
// callers then try the plain-count interpretation instead.
func Parse(s string) (time.Duration, bool) {
	matches := tokenPattern.FindAllStringSubmatch(strings.ToLower(s), -1)
	if len(matches) == 0 {
		return 0, false
	}

	var total time.Duration
	for _, m := range matches {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue // value too large to represent; skip the token
		}
		switch m[2] {
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		}
	}
	return total, true
}
