package contact

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/temoto/robotstxt"
	"github.com/tomnomnom/linkheader"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxFetchBytes = 5 << 20 // 5 MiB page cap

// FetchResult is the outcome of a successful fetch.
type FetchResult struct {
	Status   int
	Body     string
	FinalURL string
}

// Fetcher implements C3: polite HTTP GET with per-origin rate limiting and
// robots.txt compliance (spec.md §4.3).
type Fetcher struct {
	client       *http.Client
	logger       *zap.Logger
	rateLimit    time.Duration
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	robotsCache  map[string]*robotstxt.RobotsData
	robotsMu     sync.RWMutex
}

// NewFetcher constructs a Fetcher with the given per-origin minimum request
// interval.
func NewFetcher(client *http.Client, rateLimit time.Duration, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		client:      client,
		logger:      logger,
		rateLimit:   rateLimit,
		limiters:    make(map[string]*rate.Limiter),
		robotsCache: make(map[string]*robotstxt.RobotsData),
	}
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// limiterFor returns (creating if needed) the token-bucket limiter for an
// origin: one token every rate_limit_seconds, satisfying the ordering
// guarantee that the k-th request to an origin starts no sooner than
// rate_limit_seconds after the (k-1)-th (spec.md §5, testable property 5).
func (f *Fetcher) limiterFor(origin string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[origin]; ok {
		return l
	}
	var l *rate.Limiter
	if f.rateLimit <= 0 {
		l = rate.NewLimiter(rate.Inf, 1)
	} else {
		l = rate.NewLimiter(rate.Every(f.rateLimit), 1)
	}
	f.limiters[origin] = l
	return l
}

// Fetch performs the GET described by spec.md §4.3. It blocks until the
// origin's rate-limit slot opens and the response (or context deadline)
// arrives.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, dctx DiscoveryContext) (*FetchResult, error) {
	origin, err := originOf(targetURL)
	if err != nil {
		return nil, Wrap("fetch", targetURL, ErrInvalidURL)
	}

	if dctx.RespectRobots {
		allowed, err := f.robotsAllowed(ctx, targetURL, dctx.UserAgent)
		if err != nil {
			f.logger.Debug("robots check failed, allowing", zap.String("url", targetURL), zap.Error(err))
		} else if !allowed {
			return nil, Wrap("fetch", targetURL, ErrRobotsBlocked)
		}
	}

	if err := f.limiterFor(origin).Wait(ctx); err != nil {
		return nil, Wrap("fetch", targetURL, ErrCancelled)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, Wrap("fetch", targetURL, ErrInvalidURL)
	}
	req.Header.Set("User-Agent", dctx.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", fmt.Sprintf("%s,en;q=0.5", dctx.LanguagePreference))
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Wrap("fetch", targetURL, ErrTimeout)
		}
		return nil, Wrap("fetch", targetURL, ErrNetwork)
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, Wrap("fetch", targetURL, ErrParseError)
	}

	if resp.StatusCode >= 400 {
		return nil, Wrap("fetch", targetURL, ErrHTTPStatus(targetURL, resp.StatusCode))
	}

	finalURL := resp.Request.URL.String()
	if canonical := canonicalFromLinkHeader(resp.Header.Get("Link")); canonical != "" {
		finalURL = canonical
	}

	return &FetchResult{Status: resp.StatusCode, Body: body, FinalURL: finalURL}, nil
}

func decodeBody(resp *http.Response) (string, error) {
	limited := io.LimitReader(resp.Body, maxFetchBytes+1)
	var reader io.Reader = limited
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		zr, err := zlib.NewReader(limited)
		if err != nil {
			return "", err
		}
		defer zr.Close()
		reader = zr
	case "br":
		reader = brotli.NewReader(limited)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if len(data) > maxFetchBytes {
		return "", ErrTooLarge
	}
	return string(data), nil
}

// canonicalFromLinkHeader extracts rel="canonical" from an HTTP Link header,
// preferred over a redirect chain's literal final hop for discovery-path
// bookkeeping (SPEC_FULL.md §11).
func canonicalFromLinkHeader(header string) string {
	if header == "" {
		return ""
	}
	for _, l := range linkheader.Parse(header) {
		if l.Rel == "canonical" {
			return l.URL
		}
	}
	return ""
}

// robotsAllowed consults the per-origin robots.txt cache, fetching it on
// first access with a short timeout; on failure, crawling is assumed
// allowed (spec.md §4.3).
func (f *Fetcher) robotsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error) {
	origin, err := originOf(targetURL)
	if err != nil {
		return true, err
	}

	f.robotsMu.RLock()
	data, cached := f.robotsCache[origin]
	f.robotsMu.RUnlock()

	if !cached {
		robotsCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(robotsCtx, http.MethodGet, origin+"/robots.txt", nil)
		if err != nil {
			return true, err
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := f.client.Do(req)
		if err != nil {
			return true, nil
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			f.robotsMu.Lock()
			f.robotsCache[origin] = nil
			f.robotsMu.Unlock()
			return true, nil
		}
		parsed, err := robotstxt.FromResponse(resp)
		if err != nil {
			return true, nil
		}
		f.robotsMu.Lock()
		f.robotsCache[origin] = parsed
		f.robotsMu.Unlock()
		data = parsed
	}

	if data == nil {
		return true, nil
	}

	group := data.FindGroup(userAgent)
	if group == nil {
		group = data.FindGroup("*")
	}
	if group == nil {
		return true, nil
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return true, nil
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path), nil
}
