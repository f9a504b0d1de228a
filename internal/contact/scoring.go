package contact

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// ScoreFactor is one of the seven weighted inputs to the confidence score.
type ScoreFactor string

const (
	FactorFormatValidity   ScoreFactor = "format_validity"
	FactorDomainReputation ScoreFactor = "domain_reputation"
	FactorContextual       ScoreFactor = "contextual_relevance"
	FactorExtractionMethod ScoreFactor = "extraction_method"
	FactorCulturalFit      ScoreFactor = "cultural_fit"
	FactorVerification     ScoreFactor = "verification_status"
	FactorHistorical       ScoreFactor = "historical_performance"
)

// factorWeights sum to 1.0 (spec.md §4.5).
var factorWeights = map[ScoreFactor]float64{
	FactorFormatValidity:   0.25,
	FactorDomainReputation: 0.20,
	FactorContextual:       0.20,
	FactorExtractionMethod: 0.15,
	FactorCulturalFit:      0.10,
	FactorVerification:     0.05,
	FactorHistorical:       0.05,
}

// domainReputation is the fixed lookup table for email/website domains.
var domainReputation = map[string]float64{
	"gmx.de": 0.85, "gmx.net": 0.85, "web.de": 0.85, "t-online.de": 0.9, "freenet.de": 0.8,
	"gmail.com": 0.7, "outlook.com": 0.65, "hotmail.com": 0.6, "yahoo.com": 0.6, "icloud.com": 0.65,
}

var realEstateDomainKeywords = []string{"immobilien", "makler", "realty", "real-estate", "realestate", "hausverwaltung"}

var extractionMethodScores = map[string]float64{
	"mailto_link":      0.95,
	"standard_pattern": 0.8,
	"obfuscated_text":  0.7,
	"ocr":              0.6,
	"pdf":              0.7,
	"social_media":     0.75,
	"form_detection":   0.65,
}

var verificationStatusScores = map[VerificationStatus]float64{
	StatusVerified:   1.0,
	StatusUnverified: 0.6,
	StatusSuspicious: 0.3,
	StatusFlagged:    0.2,
	StatusInvalid:    0.1,
}

var realEstateURLKeywords = []string{"immobilien", "makler", "wohnung", "haus", "miete", "kauf", "objekt"}
var contactPageURLKeywords = []string{"kontakt", "contact", "impressum", "about", "team"}

// munichAreaCodeRe matches both the international form ("+4989...") and the
// canonical national form extract_phone.go actually produces ("089...").
var munichAreaCodeRe = regexp.MustCompile(`^(\+49|0)89`)

// Scorer implements C5: multi-factor confidence scoring with an explain() view.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// FactorBreakdown is one line of an explain() report.
type FactorBreakdown struct {
	Factor      ScoreFactor
	Value       float64
	Weight      float64
	Contribution float64
}

// ScoreExplanation is the full explain(contact) output (spec.md §4.5).
type ScoreExplanation struct {
	Score           float64
	Level           ConfidenceLevel
	Factors         []FactorBreakdown
	Recommendations []string
}

// Score computes the final confidence score and level for a contact within
// a discovery context, without the explain() detail.
func (s *Scorer) Score(c Contact, dctx DiscoveryContext) (float64, ConfidenceLevel) {
	total := 0.0
	for factor, weight := range factorWeights {
		total += weight * s.factorValue(factor, c, dctx)
	}
	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	return total, ScoreToLevel(total)
}

// ScoreBatch scores each contact independently against the same context.
func (s *Scorer) ScoreBatch(contacts []Contact, dctx DiscoveryContext) []Contact {
	out := make([]Contact, len(contacts))
	for i, c := range contacts {
		score, level := s.Score(c, dctx)
		c.ConfidenceScore = score
		c.ConfidenceLevel = level
		out[i] = c
	}
	return out
}

// Explain returns the full per-factor breakdown plus recommendations.
func (s *Scorer) Explain(c Contact, dctx DiscoveryContext) ScoreExplanation {
	factors := make([]FactorBreakdown, 0, len(factorWeights))
	total := 0.0
	order := []ScoreFactor{
		FactorFormatValidity, FactorDomainReputation, FactorContextual,
		FactorExtractionMethod, FactorCulturalFit, FactorVerification, FactorHistorical,
	}
	for _, factor := range order {
		weight := factorWeights[factor]
		value := s.factorValue(factor, c, dctx)
		contribution := weight * value
		total += contribution
		factors = append(factors, FactorBreakdown{Factor: factor, Value: value, Weight: weight, Contribution: contribution})
	}
	if total > 1 {
		total = 1
	}
	level := ScoreToLevel(total)
	return ScoreExplanation{
		Score:           total,
		Level:           level,
		Factors:         factors,
		Recommendations: recommendationsFor(c, factors),
	}
}

func (s *Scorer) factorValue(factor ScoreFactor, c Contact, dctx DiscoveryContext) float64 {
	switch factor {
	case FactorFormatValidity:
		return formatValidity(c)
	case FactorDomainReputation:
		return domainReputationScore(c)
	case FactorContextual:
		return contextualRelevance(c)
	case FactorExtractionMethod:
		if v, ok := extractionMethodScores[c.ExtractionMethod]; ok {
			return v
		}
		return 0.5
	case FactorCulturalFit:
		return culturalFit(c, dctx)
	case FactorVerification:
		if v, ok := verificationStatusScores[c.VerificationStatus]; ok {
			return v
		}
		return verificationStatusScores[StatusUnverified]
	case FactorHistorical:
		return 0.5
	default:
		return 0.5
	}
}

func formatValidity(c Contact) float64 {
	switch c.Method {
	case MethodEmail, MethodMailto:
		return emailFormatValidity(c.Value)
	case MethodPhone:
		return phoneFormatValidity(c.Value)
	default:
		if c.Value == "" {
			return 0.2
		}
		if _, err := url.ParseRequestURI(c.Value); err == nil {
			return 0.85
		}
		return 0.5
	}
}

func emailFormatValidity(value string) float64 {
	if !strictEmailRe.MatchString(value) {
		return 0.2
	}
	local, domain, ok := splitEmail(strings.ToLower(value))
	if !ok || isRejectedEmailDomain(domain) {
		return 0.3
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return 0.5
	}
	return 1.0
}

func phoneFormatValidity(value string) float64 {
	digits := digitsOnly(value)
	if len(digits) < 6 || len(digits) > 15 {
		return 0.2
	}
	if strings.HasPrefix(value, "+") {
		return 0.9
	}
	return 0.7
}

func domainReputationScore(c Contact) float64 {
	domain := valueDomain(c.Method, c.Value)
	if domain == "" {
		return 0.5
	}
	base := 0.6
	if v, ok := domainReputation[domain]; ok {
		base = v
	}
	for _, kw := range realEstateDomainKeywords {
		if strings.Contains(domain, kw) {
			base = 0.85
			break
		}
	}
	if strings.Count(domain, ".") > 1 {
		base *= 0.9
	}
	if base > 1 {
		base = 1
	}
	return base
}

func contextualRelevance(c Contact) float64 {
	score := 0.3
	lowerSource := strings.ToLower(c.SourceURL)
	for _, kw := range realEstateURLKeywords {
		if strings.Contains(lowerSource, kw) {
			score += 0.2
		}
	}
	for _, kw := range contactPageURLKeywords {
		if strings.Contains(lowerSource, kw) {
			score += 0.15
		}
	}
	for _, p := range c.DiscoveryPath {
		lp := strings.ToLower(p)
		for _, kw := range contactPageURLKeywords {
			if strings.Contains(lp, kw) {
				score += 0.1
				break
			}
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

func culturalFit(c Contact, dctx DiscoveryContext) float64 {
	if dctx.CulturalContext != "german" && dctx.CulturalContext != "de" {
		return 0.5
	}
	score := 0.5
	switch c.Method {
	case MethodEmail, MethodMailto:
		if strings.HasSuffix(strings.ToLower(c.Value), ".de") {
			score += 0.3
		}
	case MethodPhone:
		if munichAreaCodeRe.MatchString(digitsPreservingPlus(c.Value)) {
			score += 0.3
		}
	case MethodSocialMedia:
		if platform, ok := c.Metadata["platform"].(string); ok && platform == string(PlatformXing) {
			score += 0.3
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

func digitsPreservingPlus(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '+' || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func recommendationsFor(c Contact, factors []FactorBreakdown) []string {
	var recs []string
	for _, f := range factors {
		switch {
		case f.Factor == FactorFormatValidity && f.Value < 0.6:
			recs = append(recs, "re-check value formatting; low format-validity score")
		case f.Factor == FactorDomainReputation && f.Value < 0.5:
			recs = append(recs, "unfamiliar domain; consider manual review")
		case f.Factor == FactorVerification && c.VerificationStatus == StatusUnverified:
			recs = append(recs, "run validation to raise confidence")
		case f.Factor == FactorContextual && f.Value < 0.4:
			recs = append(recs, "contact found far from any contact/about page; verify relevance")
		}
	}
	sort.Strings(recs)
	return recs
}
