package inquiry

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/dalemusser/inquiry/pantry/geo/ip"
	"github.com/dalemusser/inquiry/pantry/text"
)

// TokenHeader carries the shared form secret.
const TokenHeader = "x-form-token"

// DefaultMinFillTime is the shortest plausible time for a human to fill the form.
const DefaultMinFillTime = 2500 * time.Millisecond

// Reason names the signal that rejected a submission. It is logged and
// counted, never returned to the caller.
type Reason string

const (
	ReasonTokenMismatch     Reason = "token_mismatch"
	ReasonOriginNotAllowed  Reason = "origin_not_allowed"
	ReasonIPDenylisted      Reason = "ip_denylisted"
	ReasonCountryDenylisted Reason = "country_denylisted"
	ReasonHoneypot          Reason = "honeypot"
	ReasonTooFast           Reason = "too_fast"
	ReasonContentDenylisted Reason = "content_denylisted"
	ReasonMissingEmail      Reason = "missing_email"
	ReasonThrottled         Reason = "throttled"
)

// RequestMeta is what the filter and the operator audit block know about
// the request apart from its body.
type RequestMeta struct {
	Origin    string
	Referer   string
	ClientIP  string
	Token     string
	UserAgent string
	// Country is the ISO code of ClientIP, or "" when unknown or not looked up.
	Country string
}

// MetaFromRequest extracts RequestMeta from r. Country is left for the caller.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		Origin:    strings.TrimSpace(r.Header.Get("Origin")),
		Referer:   strings.TrimSpace(r.Header.Get("Referer")),
		ClientIP:  ip.ClientIP(r),
		Token:     r.Header.Get(TokenHeader),
		UserAgent: r.UserAgent(),
	}
}

// Verdict is the filter outcome: Accepted, or rejected with a Reason.
type Verdict struct {
	Accepted bool
	Reason   Reason
}

func accept() Verdict         { return Verdict{Accepted: true} }
func reject(r Reason) Verdict { return Verdict{Reason: r} }

func (v Verdict) String() string {
	if v.Accepted {
		return "accept"
	}
	return "reject(" + string(v.Reason) + ")"
}

// Signal inspects a submission and returns the Reason to reject it, or ""
// to pass. Signals must be pure: no I/O, no dependence on other signals.
type Signal func(Submission, RequestMeta) Reason

// Rules configures the built-in signals. Zero values disable the optional ones.
type Rules struct {
	// Token, when non-empty, must equal the x-form-token header.
	Token string

	// AllowedOrigins, when non-empty, must prefix Origin (or Referer when
	// Origin is absent), compared case-insensitively.
	AllowedOrigins []string

	// IPDenylist entries are exact addresses ("203.0.113.7"), CIDR prefixes
	// ("203.0.113.0/24") or literal string prefixes ("45.133.").
	IPDenylist []string

	// CountryDenylist holds ISO 3166-1 alpha-2 codes matched against RequestMeta.Country.
	CountryDenylist []string

	// NameDenylist and CompanyDenylist are substrings matched after folding
	// case and diacritics. EmailDenylist entries match the whole address,
	// case-insensitively.
	NameDenylist    []string
	CompanyDenylist []string
	EmailDenylist   []string

	// MinFillTime is the timing trap threshold; 0 means DefaultMinFillTime,
	// negative disables the trap.
	MinFillTime time.Duration

	// Now is the clock for the timing trap; nil means time.Now.
	Now func() time.Time
}

// Filter is the ordered admission rule chain. The first signal returning a
// Reason decides the verdict and later signals are not run.
type Filter struct {
	signals []namedSignal
}

type namedSignal struct {
	name string
	fn   Signal
}

// NewFilter builds the chain in fixed order: token, origin, IP denylist,
// country denylist, honeypot, timing trap, content denylist, required
// email, then any extra signals in the order given.
func NewFilter(rules Rules, extra ...Signal) (*Filter, error) {
	f := &Filter{}

	if rules.Token != "" {
		f.add("token", tokenSignal(rules.Token))
	}
	if origins := cleanList(rules.AllowedOrigins, strings.ToLower); len(origins) > 0 {
		f.add("origin", originSignal(origins))
	}
	if len(rules.IPDenylist) > 0 {
		sig, err := ipSignal(rules.IPDenylist)
		if err != nil {
			return nil, err
		}
		f.add("ip_denylist", sig)
	}
	if codes := cleanList(rules.CountryDenylist, strings.ToUpper); len(codes) > 0 {
		f.add("country_denylist", countrySignal(codes))
	}
	f.add("honeypot", honeypotSignal)

	if rules.MinFillTime >= 0 {
		threshold := rules.MinFillTime
		if threshold == 0 {
			threshold = DefaultMinFillTime
		}
		now := rules.Now
		if now == nil {
			now = time.Now
		}
		f.add("timing", timingSignal(threshold, now))
	}

	names := text.NewMatcher(rules.NameDenylist)
	companies := text.NewMatcher(rules.CompanyDenylist)
	emails := cleanList(rules.EmailDenylist, nil)
	if names.Len()+companies.Len()+len(emails) > 0 {
		f.add("content_denylist", contentSignal(names, companies, emails))
	}

	f.add("required_email", requiredEmailSignal)

	for i, sig := range extra {
		if sig != nil {
			f.add(fmt.Sprintf("extra_%d", i), sig)
		}
	}
	return f, nil
}

func (f *Filter) add(name string, fn Signal) {
	f.signals = append(f.signals, namedSignal{name: name, fn: fn})
}

// Evaluate runs the chain against s and meta.
func (f *Filter) Evaluate(s Submission, meta RequestMeta) Verdict {
	for _, sig := range f.signals {
		if reason := sig.fn(s, meta); reason != "" {
			return reject(reason)
		}
	}
	return accept()
}

// Signals returns the active signal names in evaluation order.
func (f *Filter) Signals() []string {
	out := make([]string, len(f.signals))
	for i, s := range f.signals {
		out[i] = s.name
	}
	return out
}

func tokenSignal(want string) Signal {
	w := []byte(want)
	return func(_ Submission, m RequestMeta) Reason {
		if subtle.ConstantTimeCompare([]byte(m.Token), w) != 1 {
			return ReasonTokenMismatch
		}
		return ""
	}
}

func originSignal(allowed []string) Signal {
	return func(_ Submission, m RequestMeta) Reason {
		src := m.Origin
		if src == "" {
			src = m.Referer
		}
		if src == "" {
			return ReasonOriginNotAllowed
		}
		src = strings.ToLower(src)
		for _, a := range allowed {
			if strings.HasPrefix(src, a) {
				return ""
			}
		}
		return ReasonOriginNotAllowed
	}
}

func ipSignal(entries []string) (Signal, error) {
	var (
		addrs    = make(map[netip.Addr]struct{})
		prefixes []netip.Prefix
		literals []string
	)
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("inquiry: ip denylist entry %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			addrs[a.Unmap()] = struct{}{}
			continue
		}
		literals = append(literals, strings.ToLower(e))
	}

	return func(_ Submission, m RequestMeta) Reason {
		raw := strings.TrimSpace(m.ClientIP)
		if raw == "" {
			return ""
		}
		if a, err := netip.ParseAddr(raw); err == nil {
			a = a.Unmap()
			if _, ok := addrs[a]; ok {
				return ReasonIPDenylisted
			}
			for _, p := range prefixes {
				if p.Contains(a) {
					return ReasonIPDenylisted
				}
			}
		}
		lower := strings.ToLower(raw)
		for _, l := range literals {
			if strings.HasPrefix(lower, l) {
				return ReasonIPDenylisted
			}
		}
		return ""
	}, nil
}

func countrySignal(codes []string) Signal {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return func(_ Submission, m RequestMeta) Reason {
		if m.Country == "" {
			return ""
		}
		if _, ok := set[strings.ToUpper(m.Country)]; ok {
			return ReasonCountryDenylisted
		}
		return ""
	}
}

func honeypotSignal(s Submission, _ RequestMeta) Reason {
	if strings.TrimSpace(s.Honeypot) != "" {
		return ReasonHoneypot
	}
	return ""
}

// timingSignal rejects forms submitted sooner than threshold after they were
// shown. A missing timestamp is unknown; a future one counts as too fast.
func timingSignal(threshold time.Duration, now func() time.Time) Signal {
	return func(s Submission, _ RequestMeta) Reason {
		start, ok := s.FormStart.Time()
		if !ok {
			return ""
		}
		elapsed := now().Sub(start)
		if elapsed < threshold {
			return ReasonTooFast
		}
		return ""
	}
}

func contentSignal(names, companies *text.Matcher, emails []string) Signal {
	return func(s Submission, _ RequestMeta) Reason {
		if _, hit := names.Match(s.Name); hit {
			return ReasonContentDenylisted
		}
		if _, hit := companies.Match(s.Company); hit {
			return ReasonContentDenylisted
		}
		email := normalizeEmail(s.Email)
		if email == "" {
			return ""
		}
		for _, e := range emails {
			if strings.EqualFold(email, e) {
				return ReasonContentDenylisted
			}
		}
		return ""
	}
}

func requiredEmailSignal(s Submission, _ RequestMeta) Reason {
	if normalizeEmail(s.Email) == "" {
		return ReasonMissingEmail
	}
	return ""
}

// cleanList trims entries, drops blanks, and applies fn when non-nil.
func cleanList(in []string, fn func(string) string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if fn != nil {
			s = fn(s)
		}
		out = append(out, s)
	}
	return out
}
