package activity

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultExcludedSchemes are the browser-internal and extension schemes that
// never produce activity.
var DefaultExcludedSchemes = []string{
	"chrome",
	"chrome-extension",
	"chrome-untrusted",
	"devtools",
	"edge",
	"about",
	"moz-extension",
	"view-source",
}

// ErrNoHost is returned for URLs without a hostname.
var ErrNoHost = errors.New("url has no host")

// Filter decides which URLs are eligible to become activity entries.
type Filter struct {
	schemes map[string]bool
	domains map[string]bool
	regexes []*regexp.Regexp
}

// NewFilter builds a Filter. Invalid regex rules are reported as an error.
func NewFilter(schemes, denyDomains, denyRegex []string) (*Filter, error) {
	f := &Filter{
		schemes: make(map[string]bool, len(schemes)),
		domains: make(map[string]bool, len(denyDomains)),
	}
	for _, s := range schemes {
		f.schemes[strings.ToLower(strings.TrimSuffix(s, ":"))] = true
	}
	for _, d := range denyDomains {
		f.domains[NormalizeHost(d)] = true
	}
	for _, expr := range denyRegex {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile denylist regex %q: %w", expr, err)
		}
		f.regexes = append(f.regexes, re)
	}
	return f, nil
}

// DefaultFilter excludes only DefaultExcludedSchemes.
func DefaultFilter() *Filter {
	f, _ := NewFilter(DefaultExcludedSchemes, nil, nil)
	return f
}

// Excluded reports whether rawURL must be dropped. Empty URLs are excluded.
func (f *Filter) Excluded(rawURL string) bool {
	if rawURL == "" {
		return true
	}
	scheme := rawURL
	if i := strings.Index(rawURL, ":"); i >= 0 {
		scheme = rawURL[:i]
	}
	if f.schemes[strings.ToLower(scheme)] {
		return true
	}
	if len(f.domains) == 0 && len(f.regexes) == 0 {
		return false
	}
	domain, err := Domain(rawURL)
	if err != nil {
		return false
	}
	if f.domains[domain] {
		return true
	}
	for _, re := range f.regexes {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// Domain extracts the normalized hostname of rawURL.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%q: %w", rawURL, ErrNoHost)
	}
	return NormalizeHost(host), nil
}

// NormalizeHost lowercases a hostname and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}
