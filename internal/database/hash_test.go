package database

import (
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdiscovery/engine/internal/contact"
)

func TestHashSignatureStableAndCaseInsensitive(t *testing.T) {
	a := hashSignature(contact.MethodEmail, "Info@Acme.de", "acme.de")
	b := hashSignature(contact.MethodEmail, "info@acme.de", "ACME.DE")
	assert.Equal(t, a, b)
}

func TestHashSignatureDiffersByMethod(t *testing.T) {
	a := hashSignature(contact.MethodEmail, "info@acme.de", "acme.de")
	b := hashSignature(contact.MethodPhone, "info@acme.de", "acme.de")
	assert.NotEqual(t, a, b)
}

func TestEncodeDecodeMetadataRoundTrip(t *testing.T) {
	m := map[string]any{"platform": "facebook", "count": float64(3)}
	raw, err := encodeMetadata(m)
	require.NoError(t, err)
	decoded, err := decodeMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestEncodeMetadataNilYieldsEmptyObject(t *testing.T) {
	raw, err := encodeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestDecodeMetadataEmptyBytesYieldsEmptyMap(t *testing.T) {
	decoded, err := decodeMetadata(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestEncodeStringsRoundTrip(t *testing.T) {
	raw, err := encodeStrings([]string{"name", "email"})
	require.NoError(t, err)
	var decoded []string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []string{"name", "email"}, decoded)
	assert.Contains(t, string(raw), "name")
}

func TestEncodeStringsNilYieldsEmptyArray(t *testing.T) {
	raw, err := encodeStrings(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
