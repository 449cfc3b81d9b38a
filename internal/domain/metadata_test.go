package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataUnmarshal(t *testing.T) {
	var m Metadata
	err := json.Unmarshal([]byte(`{
		"plan": "pro",
		"price": 19.99,
		"trial": true,
		"tags": ["sale", "spring"]
	}`), &m)
	require.NoError(t, err)

	assert.Equal(t, MetadataValue{Kind: MetadataString, Str: "pro"}, m["plan"])
	assert.Equal(t, MetadataValue{Kind: MetadataNumber, Num: 19.99}, m["price"])
	assert.Equal(t, MetadataValue{Kind: MetadataBool, Bool: true}, m["trial"])
	assert.Equal(t, MetadataValue{Kind: MetadataStringList, List: []string{"sale", "spring"}}, m["tags"])
}

func TestMetadataUnmarshal_Rejected(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"nested object", `{"nested": {"a": 1}}`},
		{"mixed array", `{"tags": ["a", 1]}`},
		{"array of objects", `{"tags": [{"a": 1}]}`},
		{"null value", `{"x": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Metadata
			assert.Error(t, json.Unmarshal([]byte(tt.in), &m))
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m := Metadata{
		"plan":  {Kind: MetadataString, Str: "pro"},
		"count": {Kind: MetadataNumber, Num: 3},
		"tags":  {Kind: MetadataStringList, List: []string{"a", "b"}},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Metadata
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

func TestMetadataSummary(t *testing.T) {
	m := Metadata{
		"zeta":  {Kind: MetadataBool, Bool: false},
		"alpha": {Kind: MetadataString, Str: "first"},
		"num":   {Kind: MetadataNumber, Num: 19.9900},
		"tags":  {Kind: MetadataStringList, List: []string{"a", "b"}},
	}

	assert.Equal(t, "alpha: first, num: 19.99, tags: a|b, zeta: false", m.Summary())
	assert.Equal(t, "", Metadata{}.Summary())
}

func TestMetadataStringValue(t *testing.T) {
	m := Metadata{
		"plan":  {Kind: MetadataString, Str: "pro"},
		"price": {Kind: MetadataNumber, Num: 19.99},
	}

	assert.Equal(t, "pro", m.StringValue("plan"))
	assert.Equal(t, "", m.StringValue("price"), "non-string values read as empty")
	assert.Equal(t, "", m.StringValue("missing"))
}

func TestMetricEventTypeValid(t *testing.T) {
	assert.True(t, EventImpression.Valid())
	assert.True(t, EventClick.Valid())
	assert.True(t, EventClose.Valid())
	assert.False(t, MetricEventType("hover").Valid())
	assert.False(t, MetricEventType("").Valid())
}
