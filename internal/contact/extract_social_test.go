package contact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocialMediaExtractorFindsKnownPlatforms(t *testing.T) {
	doc := Document{
		PlainText: "Follow us on https://facebook.com/acme-immobilien and https://instagram.com/acme_re and https://xing.com/profile/acme-gmbh",
		PageURL:   "https://acme.de",
	}
	s := NewSocialMediaExtractor(nil)
	contacts, err := s.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	require.Len(t, contacts, 3)

	platforms := map[string]bool{}
	for _, c := range contacts {
		platforms[c.Metadata["platform"].(string)] = true
	}
	assert.True(t, platforms[string(PlatformFacebook)])
	assert.True(t, platforms[string(PlatformInstagram)])
	assert.True(t, platforms[string(PlatformXing)])
}

func TestSocialMediaExtractorBusinessDetection(t *testing.T) {
	doc := Document{PlainText: "https://facebook.com/acme-immobilien-gmbh"}
	s := NewSocialMediaExtractor(nil)
	contacts, err := s.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, true, contacts[0].Metadata["is_business_profile"])
	assert.Equal(t, ConfidenceHigh, contacts[0].ConfidenceLevel)
}

func TestSocialMediaExtractorDedupesSameHandle(t *testing.T) {
	doc := Document{PlainText: "facebook.com/acme and again facebook.com/acme"}
	s := NewSocialMediaExtractor(nil)
	contacts, err := s.Extract(context.Background(), doc, DiscoveryContext{})
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}
