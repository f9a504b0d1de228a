package contact

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/contactdiscovery/engine/internal/observability"
)

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ResultCache is the subset of internal/cache.Cache the engine depends on,
// declared locally so this package stays independent of the cache package's
// backend choice (memory vs Redis).
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const maxOCRImagesPerPage = 5
const maxPDFLinksPerPage = 3

// EngineStats accumulates counters over the Engine's lifetime (they are
// never reset), mirroring the original DiscoveryStats dataclass.
type EngineStats struct {
	URLsProcessed   int
	ContactsFound   int
	FormsFound      int
	SocialProfiles  int
	Errors          int
	CacheHits       int
	CacheMisses     int

	// CPUPercent/MemoryPercent are the most recent host resource sample
	// (populated by GetStats, zero if sampling failed or was never run).
	CPUPercent    float64
	MemoryPercent float64
}

// Engine implements C8: orchestration of crawling, extraction, scoring,
// and optional validation behind a cached, bounded-concurrency facade.
type Engine struct {
	fetcher    *Fetcher
	crawler    *Crawler
	extractors *Extractors
	scorer     *Scorer
	validator  *Validator
	cache      ResultCache
	cacheTTL   time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer

	mu    sync.Mutex
	stats EngineStats
}

// NewEngine wires the engine's collaborators. cache may be nil, in which
// case every call is a miss. metrics may be nil, in which case Prometheus
// instrumentation is skipped (mirrors ContactDiscoveryEngine's optional
// metrics_collector).
func NewEngine(fetcher *Fetcher, crawler *Crawler, extractors *Extractors, scorer *Scorer, validator *Validator, cache ResultCache, cacheTTL time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher: fetcher, crawler: crawler, extractors: extractors,
		scorer: scorer, validator: validator, cache: cache, cacheTTL: cacheTTL, logger: logger,
		metrics: metrics, tracer: observability.Tracer("discovery"),
	}
}

// Stats returns a snapshot of the accumulated counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// GetStats returns a snapshot of the accumulated counters enriched with a
// fresh host resource sample, so operators can watch crawl throughput
// alongside host CPU/memory usage. The sample is reported only; the engine
// does not throttle on it.
func (e *Engine) GetStats(ctx context.Context) (EngineStats, error) {
	stats := e.Stats()
	snap, err := observability.SampleResources(ctx)
	if err != nil {
		return stats, err
	}
	stats.CPUPercent = snap.CPUPercent
	stats.MemoryPercent = snap.MemoryPercent
	return stats, nil
}

func cacheKey(targetURL string, methods []string, maxDepth int, enableCrawling bool) string {
	sorted := append([]string{}, methods...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return fmt.Sprintf("%s|%s|%d|%t", targetURL, strings.Join(sorted, ","), maxDepth, enableCrawling)
}

// Discover implements discover(url, context, enable_crawling, enable_validation, methods).
func (e *Engine) Discover(ctx context.Context, targetURL string, dctx DiscoveryContext, enableCrawling, enableValidation bool, methods []string) (ExtractionResult, error) {
	ctx, span := e.tracer.Start(ctx, "Discover")
	defer span.End()

	start := time.Now()
	if e.metrics != nil {
		defer func() {
			e.metrics.ExtractionLatency.WithLabelValues("discover").Observe(time.Since(start).Seconds())
		}()
	}
	if len(methods) == 0 {
		methods = dctx.ExtractionMethods
	}
	dctx.ExtractionMethods = methods
	dctx.BaseURL = targetURL
	if len(dctx.AllowedDomains) == 0 {
		if host := hostOf(targetURL); host != "" {
			dctx.AllowedDomains = []string{host}
		}
	}

	key := cacheKey(targetURL, methods, dctx.MaxDepth, enableCrawling)
	if e.cache != nil {
		if raw, ok, err := e.cache.Get(ctx, key); err == nil && ok {
			var cached ExtractionResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				e.recordCacheHit()
				return cached, nil
			}
		}
		e.recordCacheMiss()
	}

	var (
		allContacts []Contact
		allForms    []ContactForm
		allSocial   []SocialMediaProfile
		errs        error
	)

	if enableCrawling && e.crawler != nil {
		crawlResult, err := e.crawler.Crawl(ctx, dctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			if e.metrics != nil {
				e.metrics.PagesCrawled.Add(float64(len(crawlResult.Pages)))
			}
			for _, page := range crawlResult.Pages {
				contacts, forms, social, err := e.extractFromDocument(ctx, page.Document, dctx.AtDepth(page.Depth, page.URL))
				if err != nil {
					errs = multierr.Append(errs, Wrap("discovery", page.URL, err))
					continue
				}
				allContacts = append(allContacts, contacts...)
				allForms = append(allForms, forms...)
				allSocial = append(allSocial, social...)
			}
			e.addURLsProcessed(len(crawlResult.Pages))
		}
	} else {
		contacts, forms, social, err := e.extractFromURL(ctx, targetURL, dctx)
		if err != nil {
			e.recordError()
			return contactErr(targetURL, time.Since(start), Wrap("discovery", targetURL, err)), err
		}
		allContacts = contacts
		allForms = forms
		allSocial = social
		e.addURLsProcessed(1)
	}

	allContacts = dedupeContacts(allContacts)
	allForms = dedupeForms(allForms)
	allSocial = dedupeSocialProfiles(allSocial)

	if e.scorer != nil {
		allContacts = e.scorer.ScoreBatch(allContacts, dctx)
	}

	if enableValidation && e.validator != nil {
		for i := range allContacts {
			rec := e.validator.Validate(ctx, allContacts[i], LevelStandard)
			if rec.IsValid {
				allContacts[i].VerificationStatus = StatusVerified
			} else {
				allContacts[i].VerificationStatus = StatusInvalid
			}
		}
	}
	allContacts = filterByConfidence(allContacts, dctx.ConfidenceThreshold)

	e.addContactCounts(allContacts, allForms, allSocial)
	if errs != nil {
		e.recordError()
	}

	result := ExtractionResult{
		Contacts:       allContacts,
		Forms:          allForms,
		SocialProfiles: allSocial,
		SourceURL:      targetURL,
		ExtractionTime: time.Since(start),
		Metadata:       map[string]any{"cache_key": key},
	}
	if errs != nil {
		result.Error = errs.Error()
	}

	if e.cache != nil && errs == nil {
		if raw, err := json.Marshal(result); err == nil {
			_ = e.cache.Set(ctx, key, raw, e.cacheTTL)
		}
	}

	return result, errs
}

// DiscoverBatch runs Discover over every URL with bounded concurrency
// (default 5, matching discovery.py's semaphore(5) pattern).
func (e *Engine) DiscoverBatch(ctx context.Context, urls []string, dctx DiscoveryContext, enableCrawling, enableValidation bool, methods []string, concurrency int) []ExtractionResult {
	if concurrency <= 0 {
		concurrency = 5
	}
	sem := make(chan struct{}, concurrency)
	results := make([]ExtractionResult, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, u string) {
			defer wg.Done()
			defer func() { <-sem }()
			if e.metrics != nil {
				e.metrics.ActiveWorkers.Inc()
				defer e.metrics.ActiveWorkers.Dec()
			}
			res, err := e.Discover(ctx, u, dctx, enableCrawling, enableValidation, methods)
			if err != nil && res.Error == "" {
				res.Error = err.Error()
			}
			results[i] = res
		}(i, u)
	}
	wg.Wait()
	return results
}

// extractFromURL fetches one page and runs extractFromDocument over it.
func (e *Engine) extractFromURL(ctx context.Context, targetURL string, dctx DiscoveryContext) ([]Contact, []ContactForm, []SocialMediaProfile, error) {
	fr, err := e.fetcher.Fetch(ctx, targetURL, dctx)
	if err != nil {
		return nil, nil, nil, err
	}
	parsed, err := html.Parse(strings.NewReader(fr.Body))
	if err != nil {
		return nil, nil, nil, Wrap("discovery", targetURL, ErrParseError)
	}
	doc := Document{
		RawHTML:   fr.Body,
		Parsed:    parsed,
		PlainText: Normalize(extractPlainText(parsed)),
		PageURL:   fr.FinalURL,
	}
	return e.extractFromDocument(ctx, doc, dctx)
}

// extractFromDocument runs every method-gated extractor over doc, including
// the per-image/per-PDF-link capped OCR and PDF passes (spec.md §4.8).
func (e *Engine) extractFromDocument(ctx context.Context, doc Document, dctx DiscoveryContext) ([]Contact, []ContactForm, []SocialMediaProfile, error) {
	var contacts []Contact
	var forms []ContactForm
	var social []SocialMediaProfile
	var errs error

	enabled := map[string]bool{}
	for _, m := range dctx.ExtractionMethods {
		enabled[m] = true
	}

	for _, ex := range e.extractors.Enabled(dctx.ExtractionMethods) {
		switch ex.Kind() {
		case "ocr", "pdf":
			continue // handled below with item caps
		}
		found, err := ex.Extract(ctx, doc, dctx)
		if err != nil {
			errs = multierr.Append(errs, Wrap(ex.Kind(), doc.PageURL, err))
			continue
		}
		for _, c := range found {
			switch c.Method {
			case MethodForm:
				forms = append(forms, formFromContact(c))
			case MethodSocialMedia:
				social = append(social, socialFromContact(c))
				contacts = append(contacts, c)
			default:
				contacts = append(contacts, c)
			}
		}
	}

	if enabled["ocr"] {
		if ocrExtractor, ok := e.extractors.byKind["ocr"].(*OCRExtractor); ok && doc.Parsed != nil {
			imgURLs := firstImageURLs(doc.Parsed, doc.PageURL, maxOCRImagesPerPage)
			for _, imgURL := range imgURLs {
				found, err := ocrExtractor.ExtractFromImage(ctx, imgURL, doc.PageURL, dctx)
				if err != nil {
					errs = multierr.Append(errs, Wrap("ocr", imgURL, err))
					continue
				}
				contacts = append(contacts, found...)
			}
		}
	}

	if enabled["pdf"] {
		if pdfExtractor, ok := e.extractors.byKind["pdf"].(*PDFExtractor); ok && doc.Parsed != nil {
			pdfURLs := firstPDFLinks(doc.Parsed, doc.PageURL, maxPDFLinksPerPage)
			for _, pdfURL := range pdfURLs {
				found, err := pdfExtractor.ExtractFromPDF(ctx, pdfURL, doc.PageURL, dctx)
				if err != nil {
					errs = multierr.Append(errs, Wrap("pdf", pdfURL, err))
					continue
				}
				contacts = append(contacts, found...)
			}
		}
	}

	return contacts, forms, social, errs
}

func formFromContact(c Contact) ContactForm {
	form := ContactForm{ActionURL: c.Value, SourceURL: c.SourceURL, ConfidenceLevel: c.ConfidenceLevel, ConfidenceScore: c.ConfidenceScore, ObservedAt: c.ObservedAt}
	if v, ok := c.Metadata["http_method"].(string); ok {
		form.HTTPMethod = v
	}
	if v, ok := c.Metadata["fields"].([]string); ok {
		form.Fields = v
	}
	if v, ok := c.Metadata["csrf_token"].(string); ok {
		form.CSRFToken = v
	}
	return form
}

func socialFromContact(c Contact) SocialMediaProfile {
	profile := SocialMediaProfile{ProfileURL: c.Value, SourceURL: c.SourceURL, ObservedAt: c.ObservedAt}
	if v, ok := c.Metadata["platform"].(string); ok {
		profile.Platform = SocialPlatform(v)
	}
	if v, ok := c.Metadata["username"].(string); ok {
		profile.Username = v
	}
	if v, ok := c.Metadata["is_business_profile"].(bool); ok {
		profile.IsBusinessProfile = v
	}
	return profile
}

func firstImageURLs(n *html.Node, baseURL string, limit int) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			if src := attr(n, "src"); src != "" {
				if resolved, err := resolveURL(baseURL, src); err == nil {
					out = append(out, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil && len(out) < limit; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func firstPDFLinks(n *html.Node, baseURL string, limit int) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); strings.HasSuffix(strings.ToLower(href), ".pdf") {
				if resolved, err := resolveURL(baseURL, href); err == nil {
					out = append(out, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil && len(out) < limit; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func dedupeForms(forms []ContactForm) []ContactForm {
	seen := map[string]bool{}
	out := make([]ContactForm, 0, len(forms))
	for _, f := range forms {
		key := f.ActionURL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func dedupeSocialProfiles(profiles []SocialMediaProfile) []SocialMediaProfile {
	seen := map[string]bool{}
	out := make([]SocialMediaProfile, 0, len(profiles))
	for _, p := range profiles {
		key := string(p.Platform) + "|" + strings.ToLower(p.Username)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func filterByConfidence(contacts []Contact, threshold ConfidenceLevel) []Contact {
	if threshold == "" {
		return contacts
	}
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.ConfidenceLevel.AtLeast(threshold) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) recordCacheHit() {
	e.mu.Lock()
	e.stats.CacheHits++
	e.mu.Unlock()
}

func (e *Engine) recordCacheMiss() {
	e.mu.Lock()
	e.stats.CacheMisses++
	e.mu.Unlock()
}

func (e *Engine) recordError() {
	e.mu.Lock()
	e.stats.Errors++
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.DiscoveryErrors.WithLabelValues("discovery").Inc()
	}
}

func (e *Engine) addURLsProcessed(n int) {
	e.mu.Lock()
	e.stats.URLsProcessed += n
	e.mu.Unlock()
}

func (e *Engine) addContactCounts(contacts []Contact, forms []ContactForm, social []SocialMediaProfile) {
	e.mu.Lock()
	e.stats.ContactsFound += len(contacts)
	e.stats.FormsFound += len(forms)
	e.stats.SocialProfiles += len(social)
	e.mu.Unlock()
	if e.metrics != nil {
		for _, c := range contacts {
			e.metrics.ContactsFound.WithLabelValues(string(c.Method)).Inc()
		}
		if len(forms) > 0 {
			e.metrics.ContactsFound.WithLabelValues("form").Add(float64(len(forms)))
		}
		if len(social) > 0 {
			e.metrics.ContactsFound.WithLabelValues("social_media").Add(float64(len(social)))
		}
	}
}
