package contact

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// CrawlStats accumulates counters for one crawl_for_contacts run, mirroring
// the original CrawlStats dataclass.
type CrawlStats struct {
	PagesVisited   int
	PagesSkipped   int
	LinksFollowed  int
	ContactsFound  int
	Errors         int
}

// CrawlResult is the outcome of crawling a site starting from one base URL.
type CrawlResult struct {
	Pages []PageVisit
	Stats CrawlStats
}

// PageVisit is one fetched-and-analyzed page within a crawl.
type PageVisit struct {
	URL      string
	Depth    int
	Document Document
	Score    float64
}

// contactKeywords score link text/URL segments toward "worth crawling"
// (crawler.py CONTACT_KEYWORDS).
var contactKeywords = map[string]float64{
	"contact": 1.0, "kontakt": 1.0, "impressum": 0.9, "about": 0.6, "ueber-uns": 0.6,
	"about-us": 0.6, "team": 0.5, "staff": 0.5, "mitarbeiter": 0.5, "ansprechpartner": 0.8,
	"standort": 0.6, "location": 0.5, "office": 0.5, "buero": 0.5, "support": 0.4,
	"hilfe": 0.4, "help": 0.4,
}

// contactURLPatterns match path fragments directly (crawler.py CONTACT_URL_PATTERNS).
var contactURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/kontakt`),
	regexp.MustCompile(`(?i)/contact`),
	regexp.MustCompile(`(?i)/impressum`),
	regexp.MustCompile(`(?i)/about`),
	regexp.MustCompile(`(?i)/team`),
	regexp.MustCompile(`(?i)/vermieter`),
}

var ignoredExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true, ".webp": true,
	".css": true, ".js": true, ".zip": true, ".mp4": true, ".mp3": true, ".avi": true,
	".woff": true, ".woff2": true, ".ttf": true, ".ico": true,
}

var germanBusinessTerms = []string{
	"gmbh", "ag", "kg", "e.k.", "ohg", "gbr", "mbh", "inhaber", "geschaeftsfuehrer",
}

var professionalTitles = []string{
	"dr.", "prof.", "dipl.-ing", "rechtsanwalt", "steuerberater", "makler", "immobilienmakler", "vermieter",
}

type frontierItem struct {
	url   string
	depth int
}

// link is a candidate anchor found on a crawled page: its resolved target
// URL alongside its own anchor text, both of which feed link scoring
// (crawler.py::_score_link(url, link_text, context)).
type link struct {
	url  string
	text string
}

// Crawler implements C4: bounded-depth BFS over contact-relevant pages,
// grounded on the original SmartContactCrawler.crawl_for_contacts.
type Crawler struct {
	fetcher *Fetcher
	logger  *zap.Logger
}

func NewCrawler(fetcher *Fetcher, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, logger: logger}
}

const maxLinksPerPage = 20

// Crawl performs breadth-first traversal from dctx.BaseURL up to
// dctx.MaxDepth, returning every visited page's parsed Document for the
// discovery engine to run extractors over.
func (cr *Crawler) Crawl(ctx context.Context, dctx DiscoveryContext) (*CrawlResult, error) {
	visited := map[string]bool{}
	frontier := []frontierItem{{url: dctx.BaseURL, depth: 0}}
	result := &CrawlResult{}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return result, nil
		}
		item := frontier[0]
		frontier = frontier[1:]

		normURL := normalizeLinkURL(item.url)
		if visited[normURL] {
			continue
		}
		visited[normURL] = true

		if !cr.shouldCrawl(normURL, dctx) {
			result.Stats.PagesSkipped++
			continue
		}

		pageCtx := dctx.AtDepth(item.depth, normURL)
		fr, err := cr.fetcher.Fetch(ctx, normURL, pageCtx)
		if err != nil {
			result.Stats.Errors++
			cr.logger.Debug("crawl fetch failed", zap.String("url", normURL), zap.Error(err))
			continue
		}
		result.Stats.PagesVisited++

		parsed, err := html.Parse(strings.NewReader(fr.Body))
		if err != nil {
			result.Stats.Errors++
			continue
		}
		doc := Document{
			RawHTML:   fr.Body,
			Parsed:    parsed,
			PlainText: Normalize(extractPlainText(parsed)),
			PageURL:   fr.FinalURL,
		}
		result.Pages = append(result.Pages, PageVisit{URL: fr.FinalURL, Depth: item.depth, Document: doc})

		if !pageCtx.CanCrawlDeeper() {
			continue
		}

		links := extractLinks(parsed, fr.FinalURL)
		scored := cr.scoreLinks(links, item.depth, dctx)
		for i, l := range scored {
			if i >= maxLinksPerPage {
				break
			}
			if visited[normalizeLinkURL(l)] {
				continue
			}
			frontier = append(frontier, frontierItem{url: l, depth: item.depth + 1})
			result.Stats.LinksFollowed++
		}
	}

	return result, nil
}

// shouldCrawl filters a candidate URL by domain scope and extension, mirroring
// ContactCrawler._should_crawl_link.
func (cr *Crawler) shouldCrawl(rawURL string, dctx DiscoveryContext) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	lowerPath := strings.ToLower(u.Path)
	for ext := range ignoredExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return false
		}
	}
	if len(dctx.AllowedDomains) == 0 {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range dctx.AllowedDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// scoreLinks ranks candidate links by contact-relevance (_score_link),
// optionally with SmartContactCrawler's per-link German-context bonus, and
// returns the target URLs sorted highest-first.
func (cr *Crawler) scoreLinks(links []link, depth int, dctx DiscoveryContext) []string {
	type scored struct {
		url   string
		score float64
	}
	out := make([]scored, 0, len(links))
	for _, l := range links {
		score := cr.scoreLink(l.url, l.text, depth, dctx)
		if dctx.SmartScoring {
			score += enhancedContentBonus(l.url + " " + l.text)
		}
		out = append(out, scored{url: l.url, score: score})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].score > out[j-1].score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	result := make([]string, len(out))
	for i, s := range out {
		result[i] = s.url
	}
	return result
}

// scoreLink mirrors crawler.py's _score_link(url, link_text, context):
// URL patterns are checked against the path, keywords against both the path
// and the anchor text, and a depth penalty discourages runaway deep crawls.
func (cr *Crawler) scoreLink(rawURL, linkText string, depth int, dctx DiscoveryContext) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	path := strings.ToLower(u.Path)
	haystack := path + " " + strings.ToLower(linkText)
	score := 0.1

	for _, pat := range contactURLPatterns {
		if pat.MatchString(path) {
			score += 0.8
			break
		}
	}
	for kw, weight := range contactKeywords {
		if strings.Contains(haystack, kw) {
			score += weight * 0.3
		}
	}
	segments := strings.Count(strings.Trim(u.Path, "/"), "/") + 1
	if segments > 3 {
		score -= 0.1 * float64(segments-3)
	}
	score -= 2 * float64(depth)
	if score < 0 {
		score = 0
	}
	return score
}

// enhancedContentBonus adds SmartContactCrawler's business-terms/titles
// bonus when a link's own "url + link_text" suggests a professional
// listing, so links from the same page can still be prioritized against
// each other.
func enhancedContentBonus(linkContext string) float64 {
	lower := strings.ToLower(linkContext)
	bonus := 0.0
	for _, term := range germanBusinessTerms {
		if strings.Contains(lower, term) {
			bonus += 0.05
		}
	}
	for _, title := range professionalTitles {
		if strings.Contains(lower, title) {
			bonus += 0.05
		}
	}
	if bonus > 0.3 {
		bonus = 0.3
	}
	return bonus
}

func extractLinks(doc *html.Node, baseURL string) []link {
	var out []link
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
				if resolved, err := resolveURL(baseURL, href); err == nil {
					out = append(out, link{url: resolved, text: collectText(n)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func extractPlainText(n *html.Node) string {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}
	return collectText(n)
}

// normalizeLinkURL strips fragments and trailing slashes so the visited set
// dedupes equivalent URLs.
func normalizeLinkURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
