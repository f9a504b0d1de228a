package contact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeySortsMethodsForStableKey(t *testing.T) {
	k1 := cacheKey("https://acme.de", []string{"phone", "email"}, 2, true)
	k2 := cacheKey("https://acme.de", []string{"email", "phone"}, 2, true)
	assert.Equal(t, k1, k2)
	assert.Equal(t, "https://acme.de|email,phone|2|true", k1)
}

func TestCacheKeyDiffersOnCrawlingFlag(t *testing.T) {
	k1 := cacheKey("https://acme.de", []string{"email"}, 2, true)
	k2 := cacheKey("https://acme.de", []string{"email"}, 2, false)
	assert.NotEqual(t, k1, k2)
}

func TestHostOfExtractsHostname(t *testing.T) {
	assert.Equal(t, "acme.de", hostOf("https://acme.de/kontakt"))
	assert.Equal(t, "", hostOf("::bad::"))
}

func TestDedupeFormsByActionURL(t *testing.T) {
	forms := []ContactForm{
		{ActionURL: "https://acme.de/send"},
		{ActionURL: "https://acme.de/send"},
		{ActionURL: "https://acme.de/other"},
	}
	out := dedupeForms(forms)
	assert.Len(t, out, 2)
}

func TestDedupeSocialProfilesByPlatformAndHandle(t *testing.T) {
	profiles := []SocialMediaProfile{
		{Platform: PlatformFacebook, Username: "acme"},
		{Platform: PlatformFacebook, Username: "ACME"},
		{Platform: PlatformInstagram, Username: "acme"},
	}
	out := dedupeSocialProfiles(profiles)
	assert.Len(t, out, 2)
}

func TestFilterByConfidenceKeepsAtOrAboveThreshold(t *testing.T) {
	contacts := []Contact{
		{Method: MethodEmail, Value: "a@acme.de", ConfidenceLevel: ConfidenceHigh},
		{Method: MethodEmail, Value: "b@acme.de", ConfidenceLevel: ConfidenceLow},
	}
	out := filterByConfidence(contacts, ConfidenceMedium)
	assert.Len(t, out, 1)
	assert.Equal(t, "a@acme.de", out[0].Value)
}

func TestFilterByConfidenceEmptyThresholdKeepsAll(t *testing.T) {
	contacts := []Contact{
		{Method: MethodEmail, Value: "a@acme.de", ConfidenceLevel: ConfidenceLow},
	}
	out := filterByConfidence(contacts, "")
	assert.Len(t, out, 1)
}

func TestFirstImageURLsRespectsLimit(t *testing.T) {
	raw := `<html><body><img src="a.png"><img src="b.png"><img src="c.png"></body></html>`
	doc := parseHTML(t, raw)
	out := firstImageURLs(doc, "https://acme.de/", 2)
	assert.Len(t, out, 2)
	assert.Equal(t, "https://acme.de/a.png", out[0])
}

func TestFirstPDFLinksOnlyMatchesPDFSuffix(t *testing.T) {
	raw := `<html><body><a href="brochure.pdf">b</a><a href="page.html">p</a><a href="flyer.PDF">f</a></body></html>`
	doc := parseHTML(t, raw)
	out := firstPDFLinks(doc, "https://acme.de/", 5)
	assert.Len(t, out, 2)
}

func TestFormFromContactMapsMetadata(t *testing.T) {
	c := Contact{
		Method: MethodForm, Value: "https://acme.de/send", SourceURL: "https://acme.de/kontakt",
		Metadata: map[string]any{"http_method": "post", "fields": []string{"name", "email"}, "csrf_token": "abc"},
	}
	form := formFromContact(c)
	assert.Equal(t, "post", form.HTTPMethod)
	assert.Equal(t, []string{"name", "email"}, form.Fields)
	assert.Equal(t, "abc", form.CSRFToken)
}

func TestEngineGetStatsSamplesHostResources(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil, nil, nil, 0, nil, nil)
	stats, err := e.GetStats(context.Background())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.MemoryPercent, 0.0)
}

func TestSocialFromContactMapsMetadata(t *testing.T) {
	c := Contact{
		Method: MethodSocialMedia, Value: "https://facebook.com/acme",
		Metadata: map[string]any{"platform": string(PlatformFacebook), "username": "acme", "is_business_profile": true},
	}
	profile := socialFromContact(c)
	assert.Equal(t, PlatformFacebook, profile.Platform)
	assert.Equal(t, "acme", profile.Username)
	assert.True(t, profile.IsBusinessProfile)
}
