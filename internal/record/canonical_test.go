package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	r := Record{"z": "last", "a": "first", "m": int64(1)}

	data, err := MarshalCanonical(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"first","m":1,"z":"last"}`, string(data))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	r := Record{
		"league_id":  "nfl.l.12345",
		"points_for": 1234.56,
		"wins":       int64(10),
		"is_playoffs": false,
		"logo_url":   nil,
	}

	first, err := MarshalCanonical(r)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(r)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestMarshalCanonical_NilIsNull(t *testing.T) {
	data, err := MarshalCanonical(Record{"logo_url": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"logo_url":null}`, string(data))
}

func TestMarshalCanonical_IntegralFloatMatchesInt(t *testing.T) {
	// Extraction runs deliver whole-number scores as either int or
	// float depending on the upstream JSON; both must hash the same.
	asFloat, err := MarshalCanonical(Record{"team1_score": 98.0})
	require.NoError(t, err)
	asInt, err := MarshalCanonical(Record{"team1_score": int64(98)})
	require.NoError(t, err)
	assert.Equal(t, string(asInt), string(asFloat))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(Record{"url": "https://example.com/league?a=1&b=2"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "a=1&b=2")
}

func TestMarshalCanonical_NFCNormalizesStrings(t *testing.T) {
	// "é" composed (U+00E9) vs decomposed (e + U+0301)
	composed := Record{"manager_name": "José"}
	decomposed := Record{"manager_name": "José"}

	a, err := MarshalCanonical(composed)
	require.NoError(t, err)
	b, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalCanonical_NonFiniteFloatRejected(t *testing.T) {
	_, err := MarshalCanonical(Record{"points_for": math.NaN()})
	assert.Error(t, err)

	_, err = MarshalCanonical(Record{"points_for": math.Inf(1)})
	assert.Error(t, err)
}

func TestMarshalCanonical_UnsupportedTypeRejected(t *testing.T) {
	_, err := MarshalCanonical(Record{"nested": map[string]any{"x": 1}})
	assert.Error(t, err)
}
