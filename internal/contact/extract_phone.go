package contact

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PhoneExtractor implements the phone-discovery rules of spec.md §4.2.
type PhoneExtractor struct {
	logger *zap.Logger
}

func NewPhoneExtractor(logger *zap.Logger) *PhoneExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhoneExtractor{logger: logger}
}

func (p *PhoneExtractor) Kind() string { return "phone" }

var (
	germanIntlRe   = regexp.MustCompile(`\+49[\s.-]?\(?0?\)?[\s.-]?(\d[\d\s.-]{5,13}\d)`)
	germanZeroRe   = regexp.MustCompile(`\b0049[\s.-]?(\d[\d\s.-]{5,13}\d)`)
	germanMobileRe = regexp.MustCompile(`(?:\+49[\s.-]?|0)(1[567]\d)[\s.-]?(\d[\d\s.-]{4,9}\d)`)
	munichRe       = regexp.MustCompile(`\(?089\)?[\s.-]?(\d[\d\s.-]{4,9}\d)`)
	genericIntlRe  = regexp.MustCompile(`\+(\d{1,3})[\s.-]?(\d[\d\s.-]{5,13}\d)`)

	nonDigitPlusRe = regexp.MustCompile(`[^\d+]`)
)

// germanAreaCodeRoots are the landline area-code first digits (2..9),
// mobile prefixes handled separately (15/16/17) per spec.md §4.2.
var germanAreaCodeRoots = map[byte]bool{
	'2': true, '3': true, '4': true, '5': true, '6': true, '7': true, '8': true, '9': true,
}

// germanAreaCodes maps the non-Munich landline area codes (digits following
// the leading 0) to their city, so Berlin/Hamburg/Frankfurt/etc. numbers are
// recognized the way Munich's dedicated pattern already is (spec.md §4.2).
var germanAreaCodes = map[string]string{
	"30": "berlin", "40": "hamburg", "69": "frankfurt",
	"211": "duesseldorf", "221": "koeln", "231": "dortmund", "201": "essen",
	"341": "leipzig", "351": "dresden", "421": "bremen", "511": "hannover",
	"711": "stuttgart", "911": "nuernberg",
}

// germanNationalRe matches "0<area code><rest>" for the cities listed in
// germanAreaCodes (Munich's 089 is handled separately by munichRe).
var germanNationalRe = regexp.MustCompile(`\(?0(711|211|221|231|201|341|351|421|511|911|30|40|69)\)?[\s.-]?(\d[\d\s.-]{4,9}\d)`)

func canonicalDigits(s string) string {
	cleaned := nonDigitPlusRe.ReplaceAllString(s, "")
	if strings.Count(cleaned, "+") > 1 {
		cleaned = "+" + strings.ReplaceAll(cleaned, "+", "")
	}
	return cleaned
}

func digitsOnly(s string) string {
	return strings.TrimPrefix(canonicalDigits(s), "+")
}

func validPhoneLength(digits string) bool {
	return len(digits) >= 8 && len(digits) <= 15
}

func (p *PhoneExtractor) Extract(_ context.Context, doc Document, dctx DiscoveryContext) ([]Contact, error) {
	text := Normalize(doc.PlainText)
	out := make([]Contact, 0, 4)

	add := func(raw, canonical, method string, isMobile bool, areaCode string) {
		digits := digitsOnly(canonical)
		if !validPhoneLength(digits) {
			return
		}
		meta := map[string]any{}
		if isMobile {
			meta["is_mobile"] = true
		}
		if areaCode != "" {
			meta["area_code"] = areaCode
		}
		out = append(out, Contact{
			Method:             MethodPhone,
			Value:              canonical,
			SourceURL:          doc.PageURL,
			DiscoveryPath:      append([]string{}, dctx.DiscoveryPath...),
			ExtractionMethod:   method,
			VerificationStatus: StatusUnverified,
			Language:           dctx.LanguagePreference,
			CulturalContext:    dctx.CulturalContext,
			Metadata:           meta,
			ObservedAt:         time.Now(),
		})
	}

	// 3. Munich landline, bonus toward high confidence.
	for _, m := range munichRe.FindAllStringSubmatch(text, -1) {
		canonical := "0" + "89" + digitsOnly(m[1])
		add(m[0], canonical, "standard_pattern", false, "089")
	}

	// 3b. Other German landline area codes (Berlin, Hamburg, Frankfurt, ...).
	for _, m := range germanNationalRe.FindAllStringSubmatch(text, -1) {
		canonical := "0" + m[1] + digitsOnly(m[2])
		if !isValidGermanNational(canonical) {
			continue
		}
		add(m[0], canonical, "standard_pattern", false, "0"+m[1])
	}

	// 2. German mobile.
	for _, m := range germanMobileRe.FindAllStringSubmatch(text, -1) {
		canonical := "0" + m[1] + digitsOnly(m[2])
		add(m[0], canonical, "standard_pattern", true, "")
	}

	// 1. German international / 0049 variants.
	for _, m := range germanIntlRe.FindAllString(text, -1) {
		digits := digitsOnly(m)
		canonical := "+" + digits
		add(m, canonical, "standard_pattern", false, "")
	}
	for _, m := range germanZeroRe.FindAllString(text, -1) {
		digits := digitsOnly(m)
		digits = strings.TrimPrefix(digits, "0049")
		canonical := "+49" + digits
		add(m, canonical, "standard_pattern", false, "")
	}

	// 4. Generic international.
	for _, m := range genericIntlRe.FindAllString(text, -1) {
		canonical := "+" + digitsOnly(m)
		add(m, canonical, "standard_pattern", false, "")
	}

	return dedupeContacts(out), nil
}

// isValidGermanNational checks the fixed area-code table invariant from
// spec.md §4.2: leading 0, next digit 1..9, landline roots 2..9 or mobile
// prefixes 15/16/17.
func isValidGermanNational(digits string) bool {
	if len(digits) < 3 || digits[0] != '0' {
		return false
	}
	if digits[1] == '1' && len(digits) >= 3 && (digits[2] == '5' || digits[2] == '6' || digits[2] == '7') {
		return true
	}
	return germanAreaCodeRoots[digits[1]]
}
