package contact

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ValidationLevel is the depth of evidence a Validator call gathers.
type ValidationLevel string

const (
	LevelBasic         ValidationLevel = "basic"
	LevelStandard      ValidationLevel = "standard"
	LevelComprehensive ValidationLevel = "comprehensive"
)

// blockedVerificationDomains are large consumer providers known to reject
// or blacklist SMTP probes (spec.md §4.6).
var blockedVerificationDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "hotmail.com": true,
	"outlook.com": true, "live.com": true, "aol.com": true, "icloud.com": true,
	"gmx.de": true, "gmx.net": true, "web.de": true,
}

// Validator implements C6: layered, never-throws validation.
type Validator struct {
	client      *http.Client
	limiter     *rate.Limiter
	resolver    *net.Resolver
	dialer      *net.Dialer
	smtpFromAddr string
	logger      *zap.Logger
}

// NewValidator constructs a Validator with a global min-interval rate limit
// applied to every outbound check, regardless of target (spec.md §4.6).
func NewValidator(client *http.Client, rateLimitSeconds float64, smtpFromAddr string, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if smtpFromAddr == "" {
		smtpFromAddr = "verify@localhost"
	}
	var limiter *rate.Limiter
	if rateLimitSeconds <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		limiter = rate.NewLimiter(rate.Every(time.Duration(rateLimitSeconds*float64(time.Second))), 1)
	}
	return &Validator{
		client: client, limiter: limiter,
		resolver: net.DefaultResolver, dialer: &net.Dialer{Timeout: 8 * time.Second},
		smtpFromAddr: smtpFromAddr, logger: logger,
	}
}

// Validate dispatches to the per-method validation routine. It never
// returns an error: failures are encoded in the returned ValidationRecord.
func (v *Validator) Validate(ctx context.Context, c Contact, level ValidationLevel) ValidationRecord {
	if err := v.limiter.Wait(ctx); err != nil {
		return ValidationRecord{Method: ValidationSyntax, IsValid: false, Errors: []string{"rate_limit_wait_cancelled"}, ValidatedAt: time.Now()}
	}
	switch c.Method {
	case MethodEmail, MethodMailto:
		return v.validateEmail(ctx, c.Value, level)
	case MethodPhone:
		return v.validatePhone(c.Value)
	case MethodForm:
		return v.validateURL(ctx, c.Value, level, true)
	case MethodWebsite:
		return v.validateURL(ctx, c.Value, level, false)
	case MethodSocialMedia:
		return v.validateSocialMedia(ctx, c.Value, level)
	default:
		return ValidationRecord{Method: ValidationSyntax, IsValid: false, Errors: []string{"unsupported_method"}, ValidatedAt: time.Now()}
	}
}

func (v *Validator) validateEmail(ctx context.Context, value string, level ValidationLevel) ValidationRecord {
	rec := ValidationRecord{Method: ValidationSyntax, ValidatedAt: time.Now(), Metadata: map[string]any{}}

	local, domain, ok := splitEmail(strings.ToLower(value))
	if !ok {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "malformed_address")
		return rec
	}
	switch {
	case strictEmailRe.MatchString(value) && !strings.Contains(local, ".."):
		rec.IsValid = true
		rec.Confidence = 0.9
	case strictEmailRe.MatchString(value):
		rec.IsValid = true
		rec.Confidence = 0.7
		rec.Warnings = append(rec.Warnings, "lenient_local_part")
	default:
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "fails_syntax_check")
		return rec
	}

	if isRejectedEmailDomain(domain) {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "rejected_domain")
		return rec
	}

	if level == LevelBasic {
		return rec
	}

	mxHosts, err := v.resolver.LookupMX(ctx, domain)
	if err != nil || len(mxHosts) == 0 {
		if _, err := v.resolver.LookupHost(ctx, domain); err != nil {
			rec.Method = ValidationDNS
			rec.IsValid = false
			rec.Errors = append(rec.Errors, "no_mx")
			return rec
		}
		rec.Warnings = append(rec.Warnings, "no_mx_fallback_to_a_record")
	}
	rec.Method = ValidationDNS
	rec.Confidence = 0.8

	if level == LevelStandard || len(mxHosts) == 0 {
		return rec
	}

	if blockedVerificationDomains[domain] {
		rec.Warnings = append(rec.Warnings, "smtp_probe_skipped_blocked_domain")
		return rec
	}

	sort.Slice(mxHosts, func(i, j int) bool { return mxHosts[i].Pref < mxHosts[j].Pref })
	ok, smtpErr := v.smtpProbe(ctx, strings.TrimSuffix(mxHosts[0].Host, "."), value)
	rec.Method = ValidationSMTP
	if ok {
		rec.IsValid = true
		rec.Confidence = 0.95
	} else {
		rec.IsValid = false
		if smtpErr != nil {
			rec.Errors = append(rec.Errors, smtpErr.Error())
		}
	}
	return rec
}

// smtpProbe opens a raw TCP connection and issues EHLO/MAIL FROM/RCPT TO/QUIT
// by hand over net/textproto — never net/smtp's high-level client, so that
// DATA is structurally impossible to send (spec.md §4.6).
func (v *Validator) smtpProbe(ctx context.Context, mxHost, rcptTo string) (bool, error) {
	conn, err := v.dialer.DialContext(ctx, "tcp", net.JoinHostPort(mxHost, "25"))
	if err != nil {
		return false, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(8 * time.Second))

	tp := textproto.NewConn(conn)
	if _, _, err := tp.ReadResponse(220); err != nil {
		return false, err
	}
	id, err := tp.Cmd("EHLO %s", "validator.local")
	if err != nil {
		return false, err
	}
	tp.StartResponse(id)
	_, _, err = tp.ReadResponse(250)
	tp.EndResponse(id)
	if err != nil {
		id, err = tp.Cmd("HELO %s", "validator.local")
		if err != nil {
			return false, err
		}
		tp.StartResponse(id)
		_, _, err = tp.ReadResponse(250)
		tp.EndResponse(id)
		if err != nil {
			return false, err
		}
	}

	id, err = tp.Cmd("MAIL FROM:<%s>", v.smtpFromAddr)
	if err != nil {
		return false, err
	}
	tp.StartResponse(id)
	code, _, err := tp.ReadResponse(25)
	tp.EndResponse(id)
	if err != nil || (code != 250 && code != 251) {
		_, _ = tp.Cmd("QUIT")
		return false, fmt.Errorf("mail_from_rejected")
	}

	id, err = tp.Cmd("RCPT TO:<%s>", rcptTo)
	if err != nil {
		return false, err
	}
	tp.StartResponse(id)
	code, _, err = tp.ReadResponse(25)
	tp.EndResponse(id)
	accepted := err == nil && (code == 250 || code == 251)

	_, _ = tp.Cmd("QUIT")
	if !accepted {
		return false, fmt.Errorf("rcpt_to_rejected")
	}
	return true, nil
}

func (v *Validator) validatePhone(value string) ValidationRecord {
	rec := ValidationRecord{Method: ValidationSyntax, ValidatedAt: time.Now()}
	digits := digitsOnly(value)
	if !validPhoneLength(digits) {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "length_out_of_bounds")
		return rec
	}
	if strings.HasPrefix(value, "+") {
		if len(digits) < 8 {
			rec.IsValid = false
			rec.Errors = append(rec.Errors, "implausible_country_code")
			return rec
		}
		rec.IsValid = true
		rec.Confidence = 0.85
		return rec
	}
	national := "0" + strings.TrimPrefix(digits, "0")
	if isValidGermanNational(national) {
		rec.IsValid = true
		rec.Confidence = 0.8
		return rec
	}
	rec.IsValid = false
	rec.Errors = append(rec.Errors, "unrecognized_national_format")
	return rec
}

func (v *Validator) validateURL(ctx context.Context, target string, level ValidationLevel, wantForm bool) ValidationRecord {
	rec := ValidationRecord{Method: ValidationSyntax, ValidatedAt: time.Now()}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "not_http_url")
		return rec
	}
	if level == LevelBasic {
		rec.IsValid = true
		rec.Confidence = 0.6
		return rec
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "malformed_request")
		return rec
	}
	resp, err := v.client.Do(req)
	if err != nil {
		rec.Method = ValidationReachability
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "unreachable")
		return rec
	}
	resp.Body.Close()
	rec.Method = ValidationReachability
	if resp.StatusCode >= 400 {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, fmt.Sprintf("http_status_%d", resp.StatusCode))
		return rec
	}
	rec.IsValid = true
	rec.Confidence = 0.85

	if level != LevelComprehensive {
		return rec
	}

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return rec
	}
	getResp, err := v.client.Do(getReq)
	if err != nil {
		rec.Warnings = append(rec.Warnings, "comprehensive_get_failed")
		return rec
	}
	defer getResp.Body.Close()
	rec.Method = ValidationComprehensive

	contentType := getResp.Header.Get("Content-Type")
	if wantForm {
		scanner := bufio.NewScanner(getResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		found := false
		for scanner.Scan() {
			if strings.Contains(strings.ToLower(scanner.Text()), "<form") {
				found = true
				break
			}
		}
		if !found {
			rec.Warnings = append(rec.Warnings, "no_form_element_found")
		} else {
			rec.Confidence = 0.9
		}
	} else if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		rec.Warnings = append(rec.Warnings, "unexpected_content_type")
	} else {
		rec.Confidence = 0.9
	}
	return rec
}

func (v *Validator) validateSocialMedia(ctx context.Context, target string, level ValidationLevel) ValidationRecord {
	rec := ValidationRecord{Method: ValidationSyntax, ValidatedAt: time.Now()}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "not_http_url")
		return rec
	}
	if level == LevelBasic {
		rec.IsValid = true
		rec.Confidence = 0.6
		return rec
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "malformed_request")
		return rec
	}
	resp, err := v.client.Do(req)
	if err != nil {
		rec.Method = ValidationReachability
		rec.Warnings = append(rec.Warnings, "unreachable_head_request")
		rec.IsValid = true
		rec.Confidence = 0.5
		return rec
	}
	resp.Body.Close()
	rec.Method = ValidationReachability
	switch {
	case resp.StatusCode == http.StatusNotFound:
		rec.IsValid = false
		rec.Errors = append(rec.Errors, "profile_not_found")
	case resp.StatusCode >= 400:
		rec.IsValid = true
		rec.Confidence = 0.6
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("http_status_%d_treated_as_warning", resp.StatusCode))
	default:
		rec.IsValid = true
		rec.Confidence = 0.85
	}
	return rec
}

// ValidationSummary aggregates a batch validation pass (spec.md §4.6).
type ValidationSummary struct {
	Total             int
	Valid             int
	Invalid           int
	SuccessRate       float64
	AverageConfidence float64
	PerMethod         map[Method]int
	Recommendations   []string
}

// ValidateBatch validates every contact independently and returns the
// per-contact records alongside the aggregate summary.
func (v *Validator) ValidateBatch(ctx context.Context, contacts []Contact, level ValidationLevel) ([]ValidationRecord, ValidationSummary) {
	records := make([]ValidationRecord, len(contacts))
	summary := ValidationSummary{Total: len(contacts), PerMethod: map[Method]int{}}
	confidenceSum := 0.0
	for i, c := range contacts {
		rec := v.Validate(ctx, c, level)
		records[i] = rec
		if rec.IsValid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
		confidenceSum += rec.Confidence
		summary.PerMethod[c.Method]++
	}
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Valid) / float64(summary.Total)
		summary.AverageConfidence = confidenceSum / float64(summary.Total)
	}
	summary.Recommendations = batchRecommendations(summary)
	return records, summary
}

func batchRecommendations(s ValidationSummary) []string {
	var recs []string
	if s.Total == 0 {
		return recs
	}
	if s.SuccessRate < 0.5 {
		recs = append(recs, "low success rate; consider re-crawling with deeper extraction")
	}
	if s.AverageConfidence < 0.6 {
		recs = append(recs, "average confidence is low; run comprehensive validation on high-value contacts")
	}
	if s.PerMethod[MethodEmail] > 0 && s.PerMethod[MethodPhone] == 0 {
		recs = append(recs, "no phone numbers validated; extraction may be missing a channel")
	}
	return recs
}
