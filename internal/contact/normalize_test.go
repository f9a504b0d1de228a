package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAtDotMarkers(t *testing.T) {
	cases := map[string]string{
		"info [at] acme [dot] de": "info@acme.de",
		"info(at)acme(dot)de":     "info@acme.de",
		"info at acme dot de":     "info@acme.de",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input=%q", in)
	}
}

func TestNormalizeEntities(t *testing.T) {
	assert.Equal(t, "info@acme.de", Normalize("info&#64;acme&#46;de"))
	assert.Equal(t, "info@acme.de", Normalize("info&#x40;acme&#x2e;de"))
}

func TestNormalizeFullwidthFolding(t *testing.T) {
	// fullwidth '@' (U+FF20) and fullwidth '.' (U+FF0E) fold to ASCII.
	assert.Equal(t, "info@acme.de", Normalize("info＠acme．de"))
}

func TestNormalizeWhitespaceCollapse(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a   b\t\tc  "))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"info [at] acme [dot] de",
		"  multiple   spaces  ",
		"plain text with no markers",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "Normalize should be idempotent for %q", in)
	}
}

func TestContainsObfuscationMarker(t *testing.T) {
	assert.True(t, ContainsObfuscationMarker("info [at] acme [dot] de"))
	assert.True(t, ContainsObfuscationMarker("reach us at acme dot de"))
	assert.False(t, ContainsObfuscationMarker("info@acme.de"))
}
