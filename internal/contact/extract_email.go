package contact

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// EmailExtractor implements the email-discovery rules of spec.md §4.2.
type EmailExtractor struct {
	logger *zap.Logger
}

// NewEmailExtractor constructs an EmailExtractor.
func NewEmailExtractor(logger *zap.Logger) *EmailExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailExtractor{logger: logger}
}

func (e *EmailExtractor) Kind() string { return "email" }

// localPart: 1-64 chars, not starting/ending '.'; domain: >=1 dot, TLD >=2.
var strictEmailRe = regexp.MustCompile(`(?i)\b([A-Za-z0-9._%+-]{1,64})@([A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z0-9-]{2,})\b`)

var rejectDomains = map[string]bool{
	"localhost":   true,
	"example.com": true,
	"test.com":    true,
	"domain.com":  true,
}

var rejectTLDs = map[string]bool{
	".tk": true, ".ml": true, ".ga": true, ".cf": true,
}

// disposable/throwaway providers table (spec.md §4.2 "known throwaway providers").
var throwawayDomains = map[string]bool{
	"mailinator.com": true, "guerrillamail.com": true, "10minutemail.com": true,
	"tempmail.com": true, "trashmail.com": true, "yopmail.com": true,
}

var ipHostRe = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

func isRejectedEmailDomain(domain string) bool {
	domain = strings.ToLower(domain)
	if rejectDomains[domain] || throwawayDomains[domain] {
		return true
	}
	if ipHostRe.MatchString(domain) {
		return true
	}
	if !strings.Contains(domain, ".") {
		return true // single-label host
	}
	for tld := range rejectTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	return false
}

// Extract implements Extractor.
func (e *EmailExtractor) Extract(_ context.Context, doc Document, dctx DiscoveryContext) ([]Contact, error) {
	out := make([]Contact, 0, 4)

	// 1. Mailto links, highest confidence.
	if doc.Parsed != nil {
		walkMailto(doc.Parsed, func(addr string) {
			addr = strings.TrimSpace(strings.ToLower(addr))
			if addr == "" {
				return
			}
			_, domain, ok := splitEmail(addr)
			if !ok || isRejectedEmailDomain(domain) {
				return
			}
			out = append(out, e.newContact(addr, "mailto_link", doc.PageURL, dctx))
		})
	}

	normalized := Normalize(doc.PlainText)

	// 2, 3 & 4. Strict regex pass over normalized text; obfuscated/entity-
	// escaped spans are tagged separately because normalization already
	// folded markers and entities to '@'/'.'.
	rawHadEntityMarker := ContainsEntityMarker(doc.PlainText)
	rawHadWordMarker := ContainsObfuscationMarker(doc.PlainText)
	lowerRaw := strings.ToLower(doc.PlainText)
	for _, m := range strictEmailRe.FindAllStringSubmatch(normalized, -1) {
		local, domain := m[1], m[2]
		if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
			continue
		}
		full := strings.ToLower(local + "@" + domain)
		if len(full) > 254 || isRejectedEmailDomain(domain) {
			continue
		}
		method := "standard_pattern"
		if !strings.Contains(lowerRaw, strings.ToLower(m[0])) {
			switch {
			case rawHadEntityMarker:
				method = "unicode"
			case rawHadWordMarker:
				method = "obfuscated_text"
			}
		}
		out = append(out, e.newContact(full, method, doc.PageURL, dctx))
	}

	return dedupeContacts(out), nil
}

func (e *EmailExtractor) newContact(value, method, sourceURL string, dctx DiscoveryContext) Contact {
	return Contact{
		Method:             MethodEmail,
		Value:              value,
		SourceURL:          sourceURL,
		DiscoveryPath:      append([]string{}, dctx.DiscoveryPath...),
		ExtractionMethod:   method,
		VerificationStatus: StatusUnverified,
		Language:           dctx.LanguagePreference,
		CulturalContext:    dctx.CulturalContext,
		Metadata:           map[string]any{},
		ObservedAt:         time.Now(),
	}
}

func splitEmail(addr string) (local, domain string, ok bool) {
	i := strings.LastIndex(addr, "@")
	if i <= 0 || i == len(addr)-1 {
		return "", "", false
	}
	return addr[:i], addr[i+1:], true
}

// walkMailto calls fn for every mailto: href found under n, with the query
// string stripped (spec.md §4.2 step 1).
func walkMailto(n *html.Node, fn func(addr string)) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, a := range n.Attr {
			if a.Key == "href" && strings.HasPrefix(strings.ToLower(a.Val), "mailto:") {
				addr := a.Val[len("mailto:"):]
				if i := strings.IndexAny(addr, "?"); i >= 0 {
					addr = addr[:i]
				}
				if unescaped, err := url.QueryUnescape(addr); err == nil {
					addr = unescaped
				}
				fn(addr)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkMailto(c, fn)
	}
}

// dedupeContacts collapses same (method,value) observations within one
// extraction pass, keeping the highest-scored/most-specific extraction
// method and merging metadata (spec.md §4.2 "Duplicates ... are collapsed").
func dedupeContacts(in []Contact) []Contact {
	rank := map[string]int{
		"mailto_link": 4, "standard_pattern": 3, "social_media": 3,
		"obfuscated_text": 2, "unicode": 2, "ocr": 1, "pdf": 1, "form_detection": 1,
	}
	best := make(map[string]int) // dedup key -> index in out
	out := make([]Contact, 0, len(in))
	for _, c := range in {
		key := c.DedupKey()
		if idx, ok := best[key]; ok {
			if rank[c.ExtractionMethod] > rank[out[idx].ExtractionMethod] {
				merged := c
				for k, v := range out[idx].Metadata {
					if _, exists := merged.Metadata[k]; !exists {
						merged.Metadata[k] = v
					}
				}
				out[idx] = merged
			} else {
				if out[idx].Metadata == nil {
					out[idx].Metadata = map[string]any{}
				}
				for k, v := range c.Metadata {
					if _, exists := out[idx].Metadata[k]; !exists {
						out[idx].Metadata[k] = v
					}
				}
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}
	return out
}
