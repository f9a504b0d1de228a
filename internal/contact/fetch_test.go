package contact

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginOfStripsPathAndQuery(t *testing.T) {
	origin, err := originOf("https://acme.de/kontakt?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.de", origin)
}

func TestLimiterForReusesSameOriginLimiter(t *testing.T) {
	f := NewFetcher(nil, time.Second, nil)
	l1 := f.limiterFor("https://acme.de")
	l2 := f.limiterFor("https://acme.de")
	assert.Same(t, l1, l2)

	l3 := f.limiterFor("https://other.de")
	assert.NotSame(t, l1, l3)
}

func TestCanonicalFromLinkHeaderExtractsCanonicalRel(t *testing.T) {
	header := `<https://acme.de/kontakt>; rel="canonical", <https://acme.de/amp>; rel="amphtml"`
	assert.Equal(t, "https://acme.de/kontakt", canonicalFromLinkHeader(header))
	assert.Equal(t, "", canonicalFromLinkHeader(""))
	assert.Equal(t, "", canonicalFromLinkHeader(`<https://acme.de/amp>; rel="amphtml"`))
}

func TestFetchDecodesGzipBody(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte("<html><body>kontakt</body></html>"))
	_ = gz.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 0, nil)
	res, err := f.Fetch(context.Background(), srv.URL, DiscoveryContext{UserAgent: "test-agent", RespectRobots: false})
	require.NoError(t, err)
	assert.Contains(t, res.Body, "kontakt")
}

func TestFetchMapsNotFoundToHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 0, nil)
	_, err := f.Fetch(context.Background(), srv.URL, DiscoveryContext{UserAgent: "test-agent"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHTTPStatus("", 404)))
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	f := NewFetcher(nil, 0, nil)
	_, err := f.Fetch(context.Background(), "::not a url::", DiscoveryContext{UserAgent: "test-agent"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidURL))
}

func TestFetchPrefersCanonicalLinkHeaderForFinalURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<https://acme.de/kontakt>; rel="canonical"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 0, nil)
	res, err := f.Fetch(context.Background(), srv.URL, DiscoveryContext{UserAgent: "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.de/kontakt", res.FinalURL)
}
