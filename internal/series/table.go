package series

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Prefix marks storage objects that hold a metric series.
const Prefix = "cs_"

// MaxTableLen keeps table and index names inside the MySQL (64) and
// Postgres (63) identifier limits once index suffixes are appended.
const MaxTableLen = 48

var (
	nonIdentRun     = regexp.MustCompile(`[^a-z0-9_]+`)
	tableNameFormat = regexp.MustCompile(`^cs_[a-z0-9_]+$`)
)

// TableName maps an arbitrary metric key to its series table name.
// The result for an empty key is the bare Prefix, which IsValid rejects.
func TableName(key string) string {
	safe := nonIdentRun.ReplaceAllString(strings.ToLower(key), "_")
	if !strings.HasPrefix(safe, Prefix) {
		safe = Prefix + safe
	}
	if len(safe) > MaxTableLen {
		sum := uint32(xxhash.Sum64String(safe))
		safe = fmt.Sprintf("%s_%08x", safe[:MaxTableLen-9], sum)
	}
	return safe
}

// IsValid reports whether table is a usable series name: sanitized,
// within length, and not the bare marker.
func IsValid(table string) bool {
	return len(table) <= MaxTableLen && tableNameFormat.MatchString(table)
}

// MetricName strips the namespace marker from a table name.
func MetricName(table string) string {
	return strings.TrimPrefix(table, Prefix)
}
