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

// FormExtractor implements the contact-form detection rules of spec.md §4.2.
type FormExtractor struct {
	logger *zap.Logger
}

func NewFormExtractor(logger *zap.Logger) *FormExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormExtractor{logger: logger}
}

func (f *FormExtractor) Kind() string { return "form" }

var contactKeywordRe = regexp.MustCompile(`(?i)\b(contact|kontakt|message|nachricht|feedback|anfrage|inquiry|support)\b`)

var contactFieldNames = map[string]bool{
	"name": true, "email": true, "message": true, "subject": true, "phone": true,
	"telefon": true, "nachricht": true, "betreff": true, "comment": true,
}

var csrfNameRe = regexp.MustCompile(`(?i)csrf|token|_token|authenticity_token`)

func (f *FormExtractor) Extract(_ context.Context, doc Document, dctx DiscoveryContext) ([]Contact, error) {
	if doc.Parsed == nil {
		return nil, nil
	}
	var contacts []Contact
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "form" {
			if c, ok := f.analyzeForm(n, doc.PageURL, dctx); ok {
				contacts = append(contacts, c)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc.Parsed)
	return contacts, nil
}

func (f *FormExtractor) analyzeForm(n *html.Node, pageURL string, dctx DiscoveryContext) (Contact, bool) {
	action := attr(n, "action")
	method := strings.ToUpper(attr(n, "method"))
	if method == "" {
		method = "POST"
	}
	actionURL := pageURL
	if action != "" {
		if resolved, err := resolveURL(pageURL, action); err == nil {
			actionURL = resolved
		}
	}

	var fields, required []string
	hasEmailField, hasMessageField := false, false
	hasLabel, hasPlaceholder, hasFieldset, hasHint := false, false, false, false
	var csrfToken string
	complexTypes := 0
	formText := collectText(n)
	idToName := map[string]string{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "input", "textarea", "select":
				name := attr(n, "name")
				typ := strings.ToLower(attr(n, "type"))
				if name != "" {
					fields = append(fields, name)
				}
				if id := attr(n, "id"); id != "" && name != "" {
					idToName[id] = name
				}
				isRequired := hasAttr(n, "required") || attr(n, "aria-required") == "true"
				if isRequired && name != "" {
					required = append(required, name)
				}
				if typ == "hidden" && csrfNameRe.MatchString(name) {
					csrfToken = attr(n, "value")
				}
				if typ == "email" || strings.Contains(strings.ToLower(name), "email") {
					hasEmailField = true
				}
				if strings.Contains(strings.ToLower(name), "message") || strings.Contains(strings.ToLower(name), "nachricht") || n.Data == "textarea" {
					hasMessageField = true
				}
				if typ == "file" || typ == "date" || typ == "datetime" || typ == "radio" || typ == "checkbox" || n.Data == "select" {
					complexTypes++
				}
				if attr(n, "placeholder") != "" {
					hasPlaceholder = true
				}
			case "label":
				hasLabel = true
			case "fieldset":
				hasFieldset = true
			case "small", "span":
				if strings.Contains(strings.ToLower(attr(n, "class")), "hint") || strings.Contains(strings.ToLower(attr(n, "class")), "help") {
					hasHint = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	for _, name := range labelAsteriskRequiredNames(n, idToName) {
		if !containsString(required, name) {
			required = append(required, name)
		}
	}

	isContactForm := contactKeywordRe.MatchString(formText)
	if !isContactForm {
		matchCount := 0
		for _, field := range fields {
			if contactFieldNames[strings.ToLower(field)] {
				matchCount++
			}
		}
		isContactForm = matchCount >= 2
	}
	if !isContactForm && hasEmailField && hasMessageField {
		isContactForm = true
	}
	if !isContactForm {
		return Contact{}, false
	}

	fieldCount := len(fields)
	reqRatio := 0.0
	if fieldCount > 0 {
		reqRatio = float64(len(required)) / float64(fieldCount)
	}
	complexity := clamp01((float64(fieldCount)/10.0 + reqRatio + float64(complexTypes)/3.0) / 3.0)

	friendliness := 0.5
	if hasLabel {
		friendliness += 0.2
	}
	if hasPlaceholder {
		friendliness += 0.1
	}
	if hasFieldset {
		friendliness += 0.1
	}
	if hasHint {
		friendliness += 0.1
	}
	friendliness = clamp01(friendliness)

	level := ConfidenceMedium
	score := 0.65
	if csrfToken != "" && hasEmailField {
		level, score = ConfidenceHigh, 0.85
	}

	form := ContactForm{
		ActionURL:       actionURL,
		HTTPMethod:      method,
		Fields:          fields,
		RequiredFields:  required,
		CSRFToken:       csrfToken,
		Complexity:      complexity,
		Friendliness:    friendliness,
		SourceURL:       pageURL,
		ConfidenceLevel: level,
		ConfidenceScore: score,
		ObservedAt:      time.Now(),
	}
	c := form.ToContact()
	c.DiscoveryPath = append([]string{}, dctx.DiscoveryPath...)
	c.Language = dctx.LanguagePreference
	c.CulturalContext = dctx.CulturalContext
	return c, true
}

// labelAsteriskRequiredNames finds field names marked required only by
// convention — a <label> containing "*" — either via a for="<id>"
// association or by wrapping the field directly, since many contact forms
// never set the required/aria-required attributes (spec.md rule: "required
// attribute or aria-required=true OR a label containing *").
func labelAsteriskRequiredNames(form *html.Node, idToName map[string]string) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if strings.Contains(collectText(n), "*") {
				if forID := attr(n, "for"); forID != "" {
					if name, ok := idToName[forID]; ok {
						out = append(out, name)
					}
				}
				out = append(out, wrappedFieldNames(n)...)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)
	return out
}

// wrappedFieldNames returns the name of every input/textarea/select nested
// directly inside label (the <label>Field *<input name="x"></label> pattern).
func wrappedFieldNames(label *html.Node) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "input", "textarea", "select":
				if name := attr(n, "name"); name != "" {
					out = append(out, name)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(label)
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
