package series

import (
	"encoding/json"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPrecision is the number of fractional digits kept when a value is
// rendered as fixed-point.
const DefaultPrecision = 18

var (
	numericPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d{1,3})?$`)
	integerPattern = regexp.MustCompile(`^[+-]?\d+$`)

	separatorStripper = strings.NewReplacer(",", "", " ", "")
)

// Normalizer turns upstream JSON scalars into canonical decimal strings.
// Precision is the number of fractional digits kept. Zero is honoured and
// rounds to whole numbers, so the zero value is not DefaultPrecision; use
// Normalize or set Precision explicitly.
type Normalizer struct {
	Precision int
}

// Normalize uses DefaultPrecision.
func Normalize(v interface{}) *string {
	return Normalizer{Precision: DefaultPrecision}.Normalize(v)
}

// Normalize returns a fixed-point decimal string for numeric input, or nil
// when v is not a number (bool, null, object, array, non-numeric text).
func (n Normalizer) Normalize(v interface{}) *string {
	switch val := v.(type) {
	case json.Number:
		return n.fromText(string(val))
	case string:
		return n.fromText(separatorStripper.Replace(strings.TrimSpace(val)))
	case float64:
		return n.fromFloat(val)
	case float32:
		return n.fromFloat(float64(val))
	case int:
		return n.fromText(strconv.FormatInt(int64(val), 10))
	case int32:
		return n.fromText(strconv.FormatInt(int64(val), 10))
	case int64:
		return n.fromText(strconv.FormatInt(val, 10))
	case uint64:
		return n.fromText(strconv.FormatUint(val, 10))
	}
	return nil
}

func (n Normalizer) fromFloat(f float64) *string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	// shortest round-trip form first, so 1.23 stays 1.23 and not its binary expansion
	return n.fromText(strconv.FormatFloat(f, 'f', -1, 64))
}

func (n Normalizer) fromText(s string) *string {
	if !numericPattern.MatchString(s) {
		return nil
	}
	if integerPattern.MatchString(s) {
		return canonicalInteger(s)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil
	}
	out := trimFraction(r.FloatString(n.precision()))
	return &out
}

func (n Normalizer) precision() int {
	if n.Precision < 0 || n.Precision > DefaultPrecision {
		return DefaultPrecision
	}
	return n.Precision
}

func canonicalInteger(s string) *string {
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimLeft(strings.TrimLeft(s, "+-"), "0")
	if digits == "" {
		zero := "0"
		return &zero
	}
	if neg {
		digits = "-" + digits
	}
	return &digits
}

func trimFraction(s string) string {
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-0" || s == "-" {
		return "0"
	}
	return s
}
