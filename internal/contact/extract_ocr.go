package contact

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OCRBackend recognizes text in an image. No Tesseract/similar binding ships
// with this module (dependency-light build, spec.md §9 Open Question 4);
// callers that need real OCR provide their own implementation.
type OCRBackend interface {
	RecognizeText(ctx context.Context, imageBytes []byte, languages string) (string, error)
}

const maxOCRImageBytes = 8 << 20 // bounded download size

var recognizedImageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true,
}

// OCRExtractor feeds OCR-recognized text back through the email/phone
// extractors, tagging every resulting contact extraction_method=ocr
// (spec.md §4.2).
type OCRExtractor struct {
	backend   OCRBackend
	languages string
	client    *http.Client
	email     *EmailExtractor
	phone     *PhoneExtractor
	logger    *zap.Logger
}

// NewOCRExtractor constructs an OCRExtractor. backend may be nil, in which
// case Extract returns ErrExtractorUnavailable whenever it would otherwise
// run — the flag still gates invocation, it is just not backed by a working
// recognizer in this build.
func NewOCRExtractor(backend OCRBackend, languages string, client *http.Client, logger *zap.Logger) *OCRExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if languages == "" {
		languages = "deu+eng"
	}
	return &OCRExtractor{
		backend: backend, languages: languages, client: client,
		email: NewEmailExtractor(logger), phone: NewPhoneExtractor(logger), logger: logger,
	}
}

func (o *OCRExtractor) Kind() string { return "ocr" }

// ExtractFromImage downloads imageURL (bounded size), runs OCR, and feeds
// the recognized text through the email/phone extractors.
func (o *OCRExtractor) ExtractFromImage(ctx context.Context, imageURL, pageURL string, dctx DiscoveryContext) ([]Contact, error) {
	if o.backend == nil {
		return nil, ErrExtractorUnavailable
	}
	lower := strings.ToLower(imageURL)
	ok := false
	for ext := range recognizedImageExt {
		if strings.HasSuffix(lower, ext) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, Wrap("ocr", imageURL, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, Wrap("ocr", imageURL, ErrNetwork)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxOCRImageBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, Wrap("ocr", imageURL, err)
	}
	if len(data) > maxOCRImageBytes {
		return nil, Wrap("ocr", imageURL, ErrTooLarge)
	}

	text, err := o.backend.RecognizeText(ctx, data, o.languages)
	if err != nil {
		return nil, Wrap("ocr", imageURL, err)
	}

	return o.tagResults(ctx, text, pageURL, dctx)
}

func (o *OCRExtractor) Extract(ctx context.Context, doc Document, dctx DiscoveryContext) ([]Contact, error) {
	return o.ExtractFromImage(ctx, doc.PageURL, doc.PageURL, dctx)
}

func (o *OCRExtractor) tagResults(ctx context.Context, text, pageURL string, dctx DiscoveryContext) ([]Contact, error) {
	doc := Document{PlainText: text, PageURL: pageURL}
	var out []Contact
	if emails, err := o.email.Extract(ctx, doc, dctx); err == nil {
		out = append(out, emails...)
	}
	if phones, err := o.phone.Extract(ctx, doc, dctx); err == nil {
		out = append(out, phones...)
	}
	for i := range out {
		out[i].ExtractionMethod = "ocr"
	}
	return dedupeContacts(out), nil
}
