package contact

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SocialMediaExtractor implements the platform-table regex rules of
// spec.md §4.2.
type SocialMediaExtractor struct {
	logger *zap.Logger
}

func NewSocialMediaExtractor(logger *zap.Logger) *SocialMediaExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocialMediaExtractor{logger: logger}
}

func (s *SocialMediaExtractor) Kind() string { return "social_media" }

type platformPattern struct {
	platform SocialPlatform
	re       *regexp.Regexp
	urlTmpl  string
}

var platformPatterns = []platformPattern{
	{PlatformFacebook, regexp.MustCompile(`(?i)facebook\.com/([A-Za-z0-9._-]{2,50})`), "https://facebook.com/%s"},
	{PlatformInstagram, regexp.MustCompile(`(?i)instagram\.com/([A-Za-z0-9._-]{2,50})`), "https://instagram.com/%s"},
	{PlatformTwitter, regexp.MustCompile(`(?i)(?:twitter|x)\.com/([A-Za-z0-9_]{2,50})`), "https://x.com/%s"},
	{PlatformLinkedIn, regexp.MustCompile(`(?i)linkedin\.com/(?:company|in)/([A-Za-z0-9._-]{2,80})`), "https://linkedin.com/company/%s"},
	{PlatformWhatsApp, regexp.MustCompile(`(?i)wa\.me/(\d{6,15})`), "https://wa.me/%s"},
	{PlatformTelegram, regexp.MustCompile(`(?i)t\.me/([A-Za-z0-9_]{3,32})`), "https://t.me/%s"},
	{PlatformXing, regexp.MustCompile(`(?i)xing\.com/(?:profile|companies)/([A-Za-z0-9._-]{2,80})`), "https://xing.com/profile/%s"},
}

var businessKeywords = []string{
	"immobilien", "hausverwaltung", "makler", "realty", "realestate", "real-estate",
	"property", "verwaltung", "vermietung", "gmbh", "ag", "kg", "e.k.",
}

func (s *SocialMediaExtractor) Extract(_ context.Context, doc Document, dctx DiscoveryContext) ([]Contact, error) {
	seen := map[string]bool{}
	var out []Contact

	for _, p := range platformPatterns {
		for _, m := range p.re.FindAllStringSubmatch(doc.PlainText, -1) {
			username := m[1]
			key := string(p.platform) + "|" + strings.ToLower(username)
			if seen[key] {
				continue
			}
			seen[key] = true

			profile := SocialMediaProfile{
				Platform:          p.platform,
				Username:          username,
				ProfileURL:        fmt.Sprintf(p.urlTmpl, username),
				IsBusinessProfile: isBusinessHandle(username, doc.PlainText),
				SourceURL:         doc.PageURL,
				ObservedAt:        time.Now(),
			}
			c := profile.ToContact()
			c.DiscoveryPath = append([]string{}, dctx.DiscoveryPath...)
			c.Language = dctx.LanguagePreference
			c.CulturalContext = dctx.CulturalContext
			out = append(out, c)
		}
	}
	return out, nil
}

func isBusinessHandle(username, surroundingText string) bool {
	haystack := strings.ToLower(username + " " + surroundingText)
	for _, kw := range businessKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
