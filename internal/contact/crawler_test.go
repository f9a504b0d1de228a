package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlerScoreLinkFavorsContactPages(t *testing.T) {
	cr := &Crawler{}
	kontakt := cr.scoreLink("https://acme.de/kontakt", "", 0, DiscoveryContext{})
	random := cr.scoreLink("https://acme.de/blog/2024/some-post", "", 0, DiscoveryContext{})
	assert.Greater(t, kontakt, random)
}

func TestCrawlerScoreLinkUsesAnchorTextNotJustURL(t *testing.T) {
	cr := &Crawler{}
	withText := cr.scoreLink("https://acme.de/p/123", "Kontakt aufnehmen", 0, DiscoveryContext{})
	withoutText := cr.scoreLink("https://acme.de/p/123", "", 0, DiscoveryContext{})
	assert.Greater(t, withText, withoutText)
}

func TestCrawlerScoreLinkPenalizesDepth(t *testing.T) {
	cr := &Crawler{}
	shallow := cr.scoreLink("https://acme.de/kontakt", "", 0, DiscoveryContext{})
	deep := cr.scoreLink("https://acme.de/kontakt", "", 2, DiscoveryContext{})
	assert.Greater(t, shallow, deep)
}

func TestCrawlerScoreLinkMatchesVermieterPattern(t *testing.T) {
	cr := &Crawler{}
	vermieter := cr.scoreLink("https://acme.de/vermieter", "", 0, DiscoveryContext{})
	random := cr.scoreLink("https://acme.de/blog/2024/some-post", "", 0, DiscoveryContext{})
	assert.Greater(t, vermieter, random)
}

func TestCrawlerShouldCrawlRejectsIgnoredExtensions(t *testing.T) {
	cr := &Crawler{}
	dctx := DiscoveryContext{}
	assert.False(t, cr.shouldCrawl("https://acme.de/logo.png", dctx))
	assert.True(t, cr.shouldCrawl("https://acme.de/kontakt", dctx))
}

func TestCrawlerShouldCrawlRespectsAllowedDomains(t *testing.T) {
	cr := &Crawler{}
	dctx := DiscoveryContext{AllowedDomains: []string{"acme.de"}}
	assert.True(t, cr.shouldCrawl("https://acme.de/kontakt", dctx))
	assert.True(t, cr.shouldCrawl("https://sub.acme.de/kontakt", dctx))
	assert.False(t, cr.shouldCrawl("https://other.de/kontakt", dctx))
}

func TestEnhancedContentBonusCapped(t *testing.T) {
	text := "Dr. Prof. Rechtsanwalt GmbH AG KG Steuerberater Makler Immobilienmakler Geschaeftsfuehrer Inhaber"
	bonus := enhancedContentBonus(text)
	assert.LessOrEqual(t, bonus, 0.3)
	assert.Greater(t, bonus, 0.0)
}

func TestNormalizeLinkURLStripsFragmentAndTrailingSlash(t *testing.T) {
	assert.Equal(t, normalizeLinkURL("https://acme.de/kontakt"), normalizeLinkURL("https://acme.de/kontakt/#top"))
}

func TestScoreLinksSmartScoringBonusIsPerLinkNotPerPage(t *testing.T) {
	cr := &Crawler{}
	links := []link{
		{url: "https://acme.de/p/1", text: "Unser Rechtsanwalt Dr. Mueller"},
		{url: "https://acme.de/p/2", text: "Sitemap"},
	}
	scored := cr.scoreLinks(links, 0, DiscoveryContext{SmartScoring: true})
	require.Len(t, scored, 2)
	assert.Equal(t, "https://acme.de/p/1", scored[0], "the link whose own text carries business/professional terms should rank first")
}
