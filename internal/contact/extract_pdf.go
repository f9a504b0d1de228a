package contact

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PDFBackend extracts plain text (page by page, pre-joined) and metadata
// fields from a PDF document. No PyMuPDF-equivalent binding ships with this
// module (spec.md §9 Open Question 4); callers that need real PDF parsing
// provide their own implementation.
type PDFBackend interface {
	ExtractText(ctx context.Context, pdfBytes []byte) (text string, metadata map[string]string, err error)
}

const maxPDFBytes = 10 << 20 // 10 MiB cap per spec.md §4.2

// PDFExtractor feeds PDF text and metadata fields (author, creator, title,
// subject) through the email/phone extractors, tagging every resulting
// contact extraction_method=pdf.
type PDFExtractor struct {
	backend PDFBackend
	client  *http.Client
	email   *EmailExtractor
	phone   *PhoneExtractor
	logger  *zap.Logger
}

func NewPDFExtractor(backend PDFBackend, client *http.Client, logger *zap.Logger) *PDFExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PDFExtractor{
		backend: backend, client: client,
		email: NewEmailExtractor(logger), phone: NewPhoneExtractor(logger), logger: logger,
	}
}

func (p *PDFExtractor) Kind() string { return "pdf" }

func (p *PDFExtractor) ExtractFromPDF(ctx context.Context, pdfURL, pageURL string, dctx DiscoveryContext) ([]Contact, error) {
	if p.backend == nil {
		return nil, ErrExtractorUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, Wrap("pdf", pdfURL, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, Wrap("pdf", pdfURL, ErrNetwork)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxPDFBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, Wrap("pdf", pdfURL, err)
	}
	if len(data) > maxPDFBytes {
		return nil, Wrap("pdf", pdfURL, ErrTooLarge)
	}

	text, metadata, err := p.backend.ExtractText(ctx, data)
	if err != nil {
		return nil, Wrap("pdf", pdfURL, err)
	}

	for _, field := range []string{"author", "creator", "title", "subject"} {
		if v, ok := metadata[field]; ok {
			text += " " + v
		}
	}

	return p.tagResults(ctx, text, pageURL, dctx)
}

func (p *PDFExtractor) Extract(ctx context.Context, doc Document, dctx DiscoveryContext) ([]Contact, error) {
	return p.ExtractFromPDF(ctx, doc.PageURL, doc.PageURL, dctx)
}

func (p *PDFExtractor) tagResults(ctx context.Context, text, pageURL string, dctx DiscoveryContext) ([]Contact, error) {
	doc := Document{PlainText: text, PageURL: pageURL}
	var out []Contact
	if emails, err := p.email.Extract(ctx, doc, dctx); err == nil {
		out = append(out, emails...)
	}
	if phones, err := p.phone.Extract(ctx, doc, dctx); err == nil {
		out = append(out, phones...)
	}
	for i := range out {
		out[i].ExtractionMethod = "pdf"
	}
	return dedupeContacts(out), nil
}
