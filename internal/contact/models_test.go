package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreToLevel(t *testing.T) {
	cases := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.95, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.79, ConfidenceMedium},
		{0.6, ConfidenceMedium},
		{0.59, ConfidenceLow},
		{0.4, ConfidenceLow},
		{0.39, ConfidenceUncertain},
		{0, ConfidenceUncertain},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ScoreToLevel(c.score), "score=%v", c.score)
	}
}

func TestConfidenceLevelAtLeast(t *testing.T) {
	assert.True(t, ConfidenceHigh.AtLeast(ConfidenceLow))
	assert.True(t, ConfidenceMedium.AtLeast(ConfidenceMedium))
	assert.False(t, ConfidenceLow.AtLeast(ConfidenceHigh))
	assert.False(t, ConfidenceUncertain.AtLeast(ConfidenceMedium))
}

func TestContactFingerprintStable(t *testing.T) {
	c1 := Contact{Method: MethodEmail, Value: "a@b.de", SourceURL: "https://x.de/kontakt"}
	c2 := Contact{Method: MethodEmail, Value: "A@B.DE", SourceURL: "https://x.de/kontakt"}
	assert.Equal(t, c1.Fingerprint(), c2.Fingerprint(), "fingerprint should be case-insensitive on value")

	c3 := Contact{Method: MethodEmail, Value: "a@b.de", SourceURL: "https://other.de/kontakt"}
	assert.NotEqual(t, c1.Fingerprint(), c3.Fingerprint())
}

func TestContactDedupKeyIgnoresSource(t *testing.T) {
	c1 := Contact{Method: MethodPhone, Value: "+4989123456"}
	c2 := Contact{Method: MethodPhone, Value: "+4989123456", SourceURL: "https://elsewhere.de"}
	assert.Equal(t, c1.DedupKey(), c2.DedupKey())
}

func TestWithMetadataDoesNotMutateOriginal(t *testing.T) {
	base := Contact{Method: MethodEmail, Value: "a@b.de", Metadata: map[string]any{"x": 1}}
	updated := base.WithMetadata("y", 2)

	require.Len(t, base.Metadata, 1)
	assert.Len(t, updated.Metadata, 2)
	assert.Equal(t, 1, updated.Metadata["x"])
	assert.Equal(t, 2, updated.Metadata["y"])
}

func TestDiscoveryContextCanCrawlDeeper(t *testing.T) {
	dctx := DiscoveryContext{MaxDepth: 2, CurrentDepth: 1}
	assert.True(t, dctx.CanCrawlDeeper())

	next := dctx.AtDepth(2, "https://x.de/page")
	assert.False(t, next.CanCrawlDeeper())
	assert.Equal(t, []string{"https://x.de/page"}, next.DiscoveryPath)
}

func TestValueDomain(t *testing.T) {
	assert.Equal(t, "acme.de", ValueDomain(MethodEmail, "Info@ACME.de"))
	assert.Equal(t, "acme.de", ValueDomain(MethodWebsite, "https://acme.de/kontakt?x=1"))
	assert.Equal(t, "", ValueDomain(MethodEmail, "not-an-email"))
}

func TestContactFormToContact(t *testing.T) {
	f := ContactForm{ActionURL: "https://x.de/send", ConfidenceLevel: ConfidenceHigh, ConfidenceScore: 0.9}
	c := f.ToContact()
	assert.Equal(t, MethodForm, c.Method)
	assert.Equal(t, "https://x.de/send", c.Value)
	assert.Equal(t, ConfidenceHigh, c.ConfidenceLevel)
}

func TestSocialMediaProfileToContactBusinessBonus(t *testing.T) {
	personal := SocialMediaProfile{Platform: PlatformFacebook, Username: "jdoe"}.ToContact()
	business := SocialMediaProfile{Platform: PlatformFacebook, Username: "acme-immobilien", IsBusinessProfile: true}.ToContact()
	assert.Greater(t, business.ConfidenceScore, personal.ConfidenceScore)
}
