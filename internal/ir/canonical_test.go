package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"max int64", IRInt(math.MaxInt64), "9223372036854775807"},
		{"bool", IRBool(true), "true"},
		{"null", IRNull{}, "null"},
		{"go nil", nil, "null"},
		{"float", IRFloat(3.5), "3.5"},
		{"integral float", IRFloat(2), "2"},
		{"negative zero", IRFloat(math.Copysign(0, -1)), "0"},
		{"tiny float", IRFloat(1e-7), "1e-7"},
		{"huge float", IRFloat(1e21), "1e+21"},
		{"go int64", int64(7), "7"},
		{"go float64", 0.25, "0.25"},
		{"go string", "x", `"x"`},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := MarshalCanonical(IRFloat(f))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-finite")
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra": IRInt(1),
		"alpha": IRObject{"b": IRInt(1), "a": IRInt(2)},
		"beta":  IRArray{IRString("x"), IRNull{}},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":["x",null],"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair D800 DC00, which sorts before
	// U+E000 in UTF-16 even though it sorts after it in UTF-8.
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<b>Ada & Grace</b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<b>Ada & Grace</b>"`, string(result))
	assert.NotContains(t, string(result), `\u003c`)
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := IRString("Jose\u0301")
	precomposed := IRString("Jos\u00e9")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, b, a)

	keys, err := MarshalCanonical(IRObject{"Jose\u0301": IRInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "{\"Jos\u00e9\":1}", string(keys))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"actual separators", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"literal escape text", `seq \u2028`, `"seq \\u2028"`},
		{"mixed", "lit \\u2028 real \u2028", "\"lit \\\\u2028 real \u2028\""},
		{"control chars still escaped", "tab\there\n", `"tab\there\n"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalUnsupportedType(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func FuzzMarshalCanonicalIdempotent(f *testing.F) {
	f.Add(`{"a":1,"b":"test"}`)
	f.Add(`[1,2.5,null]`)
	f.Add(`"hello"`)
	f.Add(`{"nested":{"deep":{"value":123}}}`)

	f.Fuzz(func(t *testing.T, jsonStr string) {
		val, err := UnmarshalIRValue([]byte(jsonStr))
		if err != nil {
			t.Skip()
		}

		canonical1, err := MarshalCanonical(val)
		if err != nil {
			t.Skip()
		}

		val2, err := UnmarshalIRValue(canonical1)
		require.NoError(t, err)

		canonical2, err := MarshalCanonical(val2)
		require.NoError(t, err)

		assert.Equal(t, canonical1, canonical2, "canonical marshaling must be idempotent")
	})
}
