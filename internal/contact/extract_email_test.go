package contact

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseHTML(t *testing.T, raw string) *html.Node {
	t.Helper()
	n, err := html.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	return n
}

func TestEmailExtractorMailto(t *testing.T) {
	doc := Document{
		Parsed:    parseHTML(t, `<a href="mailto:info@acme.de?subject=Hi">Contact</a>`),
		PlainText: "Contact",
		PageURL:   "https://acme.de/kontakt",
	}
	e := NewEmailExtractor(nil)
	contacts, err := e.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "info@acme.de", contacts[0].Value)
	assert.Equal(t, "mailto_link", contacts[0].ExtractionMethod)
}

func TestEmailExtractorStandardPattern(t *testing.T) {
	doc := Document{PlainText: "Reach us at sales@acme-immobilien.de for offers."}
	e := NewEmailExtractor(nil)
	contacts, err := e.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "sales@acme-immobilien.de", contacts[0].Value)
	assert.Equal(t, "standard_pattern", contacts[0].ExtractionMethod)
}

func TestEmailExtractorObfuscated(t *testing.T) {
	doc := Document{PlainText: "mail us: info [at] acme [dot] de"}
	e := NewEmailExtractor(nil)
	contacts, err := e.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "info@acme.de", contacts[0].Value)
	assert.Equal(t, "obfuscated_text", contacts[0].ExtractionMethod)
}

func TestEmailExtractorEntityEscapedTaggedUnicode(t *testing.T) {
	doc := Document{PlainText: "mail us: info&#64;acme&#46;de"}
	e := NewEmailExtractor(nil)
	contacts, err := e.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "info@acme.de", contacts[0].Value)
	assert.Equal(t, "unicode", contacts[0].ExtractionMethod)
}

func TestEmailExtractorRejectsThrowawayAndTestDomains(t *testing.T) {
	doc := Document{PlainText: "a@mailinator.com b@example.com c@test.tk"}
	e := NewEmailExtractor(nil)
	contacts, err := e.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestEmailExtractorDedupesMailtoOverStandard(t *testing.T) {
	doc := Document{
		Parsed:    parseHTML(t, `<a href="mailto:info@acme.de">Contact</a>`),
		PlainText: "email info@acme.de for more",
		PageURL:   "https://acme.de/kontakt",
	}
	e := NewEmailExtractor(nil)
	contacts, err := e.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "mailto_link", contacts[0].ExtractionMethod)
}
