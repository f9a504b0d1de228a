package contact

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// obfuscation marker substitutions, case-insensitive, applied after
// whitespace collapse and entity decoding (spec.md §4.1).
var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	atMarkerRe  = regexp.MustCompile(`(?i)\s*(\[at\]|\(at\)|\s+at\s+)\s*`)
	dotMarkerRe = regexp.MustCompile(`(?i)\s*(\[dot\]|\(dot\)|\s+dot\s+)\s*`)

	noReplyRe = regexp.MustCompile(`(?i)no-?reply\.?`)

	entityAtRe  = regexp.MustCompile(`&#0*64;|&#x0*40;`)
	entityDotRe = regexp.MustCompile(`&#0*46;|&#x0*2e;`)
)

// Normalize undoes common obfuscations and unifies whitespace/entities.
// It is pure (no I/O) and idempotent: Normalize(Normalize(x)) == Normalize(x)
// (spec.md testable property 7).
func Normalize(s string) string {
	// Fold full-width (e.g. "＠", "．") forms to ASCII before anything else,
	// then apply compatibility normalization so later regexes see plain
	// ASCII punctuation regardless of input encoding quirks.
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)

	// Decode HTML entities, including numeric forms for '@' and '.', twice
	// (handles doubly-escaped markup some extractors hand us raw).
	s = html.UnescapeString(s)
	s = entityAtRe.ReplaceAllString(s, "@")
	s = entityDotRe.ReplaceAllString(s, ".")
	s = html.UnescapeString(s)

	// Strip tracking tokens before length-sensitive checks downstream.
	s = noReplyRe.ReplaceAllString(s, "")

	// Collapse whitespace first so marker regexes match reliably regardless
	// of surrounding spacing.
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	// Word-form obfuscation markers, case-insensitive.
	s = atMarkerRe.ReplaceAllString(s, "@")
	s = dotMarkerRe.ReplaceAllString(s, ".")

	// Re-collapse: marker substitution can introduce new runs of spaces
	// around the replaced token (e.g. "hello @ acme . de" -> normalize again).
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return s
}

// ContainsObfuscationMarker reports whether s (pre-normalization) contained
// a recognizable word-form email-obfuscation marker, used by the email
// extractor to tag matches as extraction_method=obfuscated_text (spec.md
// §4.2 step 3).
func ContainsObfuscationMarker(s string) bool {
	return atMarkerRe.MatchString(s) || dotMarkerRe.MatchString(s)
}

// ContainsEntityMarker reports whether s (pre-normalization) contained a
// numeric HTML entity standing in for '@' or '.' (e.g. "info&#64;acme.de"),
// used by the email extractor to tag matches as extraction_method=unicode
// (spec.md §4.2 step 4) before Normalize decodes the entity away.
func ContainsEntityMarker(s string) bool {
	return entityAtRe.MatchString(s) || entityDotRe.MatchString(s)
}
