package urlcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentDecodeBasic(t *testing.T) {
	out, err := PercentDecode("hi%20u", true)
	require.NoError(t, err)
	assert.Equal(t, "hi u", string(out))
}

func TestPercentDecodePlusContextDependent(t *testing.T) {
	out, err := PercentDecode("a+b", true)
	require.NoError(t, err)
	assert.Equal(t, "a b", string(out))

	out, err = PercentDecode("a+b", false)
	require.NoError(t, err)
	assert.Equal(t, "a+b", string(out))
}

func TestPercentDecodeInvalidEscape(t *testing.T) {
	_, err := PercentDecode("a%zzb", true)
	require.Error(t, err)
}

func TestPercentDecodeIncompleteEscape(t *testing.T) {
	_, err := PercentDecode("a%2", true)
	require.Error(t, err)
}

func TestParseFormSplitsAndDecodes(t *testing.T) {
	m, err := ParseForm("a=1&b=hi%20u")
	require.NoError(t, err)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = m.Get("b")
	require.True(t, ok)
	assert.Equal(t, "hi u", v)
}

func TestParseFormMissingEqualsYieldsEmptyValue(t *testing.T) {
	m, err := ParseForm("debug")
	require.NoError(t, err)

	v, ok := m.Get("debug")
	require.True(t, ok)
	assert.Equal(t, "", v)
}

func TestParseFormRepeatedKeysPreserveOrder(t *testing.T) {
	m, err := ParseForm("a=1&b=2&a=3")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, m.All("a"))
}

func TestDecodeCharsetDefaultsToUTF8Passthrough(t *testing.T) {
	out, err := DecodeCharset([]byte("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestDecodeCharsetUnknownNamePassesThrough(t *testing.T) {
	out, err := DecodeCharset([]byte("hello"), "not-a-real-charset")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

// Property: parse(encode(m)) == m as multimaps (order preserved), for
// ASCII and non-ASCII keys/values — spec.md §8.
func TestParseEncodeRoundTrip(t *testing.T) {
	cases := [][2]string{
		{"a", "1"},
		{"nom", "café"},
		{"q", "hi there"},
		{"emoji", "🎉"},
	}
	for _, c := range cases {
		encodedKey := percentEncodeFormComponent(c[0])
		encodedValue := percentEncodeFormComponent(c[1])
		m, err := ParseForm(encodedKey + "=" + encodedValue)
		require.NoError(t, err)
		v, ok := m.Get(c[0])
		require.True(t, ok)
		assert.Equal(t, c[1], v)
	}
}

func TestEncodeFormIsInverseOfParseForm(t *testing.T) {
	m, err := ParseForm("a=1&b=hi%20there&a=3")
	require.NoError(t, err)

	encoded := EncodeForm(m)
	roundTripped, err := ParseForm(encoded)
	require.NoError(t, err)

	assert.True(t, m.Equal(roundTripped))
}
