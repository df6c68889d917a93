package repository

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cantontrack/internal/domain"
)

// storedTimeLayouts are the textual forms a captured_at column may come back
// in when the driver does not hand us a time.Time.
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// capturedAt scans a timestamp column. Unparseable text is kept verbatim.
type capturedAt struct {
	text string
}

func (c *capturedAt) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		c.text = ""
	case time.Time:
		c.text = formatTimestamp(v)
	case []byte:
		c.text = normalizeStoredTime(string(v))
	case string:
		c.text = normalizeStoredTime(v)
	default:
		return fmt.Errorf("unsupported captured_at type %T", src)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func normalizeStoredTime(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return formatTimestamp(t)
		}
	}
	return s
}

// parseValue renders a stored decimal as a float; NULL and garbage become nil.
func parseValue(v sql.NullString) *float64 {
	if !v.Valid || v.String == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

func newPoint(ts capturedAt, value sql.NullString) domain.Point {
	return domain.Point{CapturedAt: ts.text, Value: parseValue(value)}
}
