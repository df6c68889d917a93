package series

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var canonicalDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  *string
	}{
		{"float with trailing zeros", 1.2300, strPtr("1.23")},
		{"integral float", 42.0, strPtr("42")},
		{"zero float", 0.0, strPtr("0")},
		{"negative zero", math.Copysign(0, -1), strPtr("0")},
		{"large float no exponent", 1e21, strPtr("1000000000000000000000")},
		{"tiny float rounds to zero", 1e-20, strPtr("0")},
		{"small float", 0.000123, strPtr("0.000123")},
		{"negative float", -7.5, strPtr("-7.5")},
		{"int", 17, strPtr("17")},
		{"int64", int64(-33071512954), strPtr("-33071512954")},
		{"json integer", json.Number("9007199254740993"), strPtr("9007199254740993")},
		{"json decimal", json.Number("33071512954.480"), strPtr("33071512954.48")},
		{"json exponent", json.Number("1.5e3"), strPtr("1500")},
		{"string with separators", "1,234.50", strPtr("1234.5")},
		{"string with spaces", " 2 500 ", strPtr("2500")},
		{"string leading plus", "+3.10", strPtr("3.1")},
		{"string leading zeros", "007", strPtr("7")},
		{"string bare fraction", ".5", strPtr("0.5")},
		{"string rounds at precision", "0.1234567890123456789", strPtr("0.123456789012345679")},
		{"non numeric string", "not a number", nil},
		{"empty string", "", nil},
		{"nan string", "NaN", nil},
		{"inf string", "Inf", nil},
		{"hex string", "0x1F", nil},
		{"bool", true, nil},
		{"nil", nil, nil},
		{"object", map[string]interface{}{"a": 1}, nil},
		{"array", []interface{}{1, 2}, nil},
		{"nan float", math.NaN(), nil},
		{"inf float", math.Inf(1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
				assert.Regexp(t, canonicalDecimal, *got)
			}
		})
	}
}

func TestNormalizer_Precision(t *testing.T) {
	n := Normalizer{Precision: 2}

	assert.Equal(t, "3.14", *n.Normalize(3.14159))
	assert.Equal(t, "2.01", *n.Normalize("2.005"))
	assert.Equal(t, "100", *n.Normalize(100.0))

	n = Normalizer{Precision: 0}
	assert.Equal(t, "3", *n.Normalize(2.5))
	assert.Equal(t, "10", *n.Normalize("10.2"))

	// the zero value keeps no fractional digits
	assert.Equal(t, "2", *Normalizer{}.Normalize(1.5))
	assert.Equal(t, "1.5", *Normalize(1.5))
}

func TestNormalize_SurroundingWhitespace(t *testing.T) {
	for _, in := range []string{"\t5", "5\n", " \r\n5.50\t", "\t1,000 "} {
		got := Normalize(in)
		if assert.NotNil(t, got, "%q", in) {
			assert.Regexp(t, canonicalDecimal, *got)
		}
	}
	assert.Equal(t, "1000", *Normalize("\t1,000 "))
	assert.Nil(t, Normalize("\t"))
	assert.Nil(t, Normalize("5\tx"))
}

func TestTableName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"total_cc", "cs_total_cc"},
		{"Active Addresses (24h)", "cs_active_addresses_24h_"},
		{"price.usd", "cs_price_usd"},
		{"a--b", "cs_a_b"},
		{"CS_Existing", "cs_existing"},
		{"", "cs_"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := TableName(tt.key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, TableName(got), "TableName must be idempotent")
		})
	}
}

func TestTableName_LongKeys(t *testing.T) {
	long := strings.Repeat("very_long_metric_key_", 6)

	got := TableName(long)
	assert.Len(t, got, MaxTableLen)
	assert.True(t, IsValid(got))
	assert.Equal(t, got, TableName(got))
	assert.Equal(t, got, TableName(long), "must be deterministic")

	other := TableName(long + "x")
	assert.NotEqual(t, got, other, "distinct long keys should not collide")
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid(TableName("")))
	assert.False(t, IsValid("users"))
	assert.False(t, IsValid("cs_bad;drop"))
	assert.False(t, IsValid("cs_"+strings.Repeat("a", MaxTableLen)))
	assert.True(t, IsValid("cs_total_cc"))
	assert.True(t, IsValid(TableName("!!!")))
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "total_cc", MetricName("cs_total_cc"))
	assert.Equal(t, "plain", MetricName("plain"))
	assert.Equal(t, TableName("total_cc"), TableName(MetricName(TableName("total_cc"))))
}

func strPtr(s string) *string {
	return &s
}
