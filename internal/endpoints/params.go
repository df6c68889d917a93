package endpoints

import (
	"math"
	"strconv"
	"strings"
	"time"

	"cantontrack/internal/domain"
)

var boundLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseBound reads a from/to query value. Anything that does not parse is
// treated as absent. Values without an offset are taken as UTC.
func parseBound(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t
	}
	return nil
}

// parseLimit reads the leading integer of raw, defaulting to
// domain.DefaultSeriesLimit, and clamps it to the allowed window.
func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)

	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	digits := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digits {
		return domain.DefaultSeriesLimit
	}

	limit, err := strconv.ParseInt(raw[:end], 10, 64)
	if err != nil {
		// out of int64 range
		if raw[0] == '-' {
			limit = math.MinInt64
		} else {
			limit = math.MaxInt64
		}
	}
	if limit > domain.MaxSeriesLimit {
		return domain.MaxSeriesLimit
	}
	return domain.ClampLimit(int(limit))
}
