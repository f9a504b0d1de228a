package contact

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Document bundles what an Extractor needs: normalized page text, the raw
// parsed HTML tree (nil for plain-text-only sources like OCR output), and
// the page's own text already run through Normalize.
type Document struct {
	RawHTML   string
	Parsed    *html.Node
	PlainText string
	PageURL   string
}

// Extractor turns a Document into candidate Contacts. Implementations are
// pure functions of (doc, ctx) — no shared mutable state across calls
// (design note: "Multiple inheritance in notifiers/extractors -> interface
// + variant").
type Extractor interface {
	Kind() string
	Extract(ctx context.Context, doc Document, dctx DiscoveryContext) ([]Contact, error)
}

// Extractors is the engine's fixed registry of enabled extractors, held by
// kind rather than by a class hierarchy.
type Extractors struct {
	byKind map[string]Extractor
	logger *zap.Logger
}

// NewExtractors builds a registry from the given extractors, keyed by Kind().
func NewExtractors(logger *zap.Logger, extractors ...Extractor) *Extractors {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := &Extractors{byKind: make(map[string]Extractor, len(extractors)), logger: logger}
	for _, e := range extractors {
		reg.byKind[e.Kind()] = e
	}
	return reg
}

// Enabled filters the registry down to the requested kinds, in the order
// the kinds are given; unregistered kinds are skipped.
func (r *Extractors) Enabled(kinds []string) []Extractor {
	out := make([]Extractor, 0, len(kinds))
	for _, k := range kinds {
		if e, ok := r.byKind[k]; ok {
			out = append(out, e)
		}
	}
	return out
}
