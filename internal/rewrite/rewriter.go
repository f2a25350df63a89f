// Package rewrite classifies URLs and turns them into proxy-relative encoded
// paths of the form prefix + base64url(absoluteURL).
package rewrite

import (
	"net/url"
	"strings"
)

// specialPrefixes are never proxied nor resolved.
var specialPrefixes = []string{"data:", "blob:", "javascript:", "#", "about:", "mailto:"}

// reservedPrefixes belong to the proxy itself: already rewritten links and its
// static assets.
var reservedPrefixes = []string{"/p/", "/static/"}

// Rewriter applies the classify, normalize and encode pipeline. It is
// immutable and safe for concurrent use.
type Rewriter struct {
	cfg    Config
	scheme string
	base   *url.URL
}

// New builds a Rewriter. Unusable origin or base values are tolerated: they
// only make the dependent resolutions fail open.
func New(cfg Config) *Rewriter {
	cfg = cfg.withDefaults()
	r := &Rewriter{cfg: cfg, scheme: "https:"}
	if u, err := url.Parse(cfg.TargetOrigin); err == nil && u.Scheme != "" {
		r.scheme = u.Scheme + ":"
	}
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.IsAbs() {
		r.base = u
	}
	return r
}

// Config returns the configuration in effect, defaults applied.
func (r *Rewriter) Config() Config { return r.cfg }

// Prefix returns the proxy path prefix.
func (r *Rewriter) Prefix() string { return r.cfg.Prefix }

func isSpecial(s string) bool {
	for _, p := range specialPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Normalize resolves any URL form to an absolute URL. Special schemes pass
// through and inputs that cannot be resolved are returned unchanged.
func (r *Rewriter) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || isSpecial(s) {
		return s
	}
	if strings.HasPrefix(s, "//") {
		return r.scheme + s
	}
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, r.cfg.Prefix) {
		return r.cfg.TargetOrigin + s
	}
	if isHTTP(s) {
		return s
	}
	if r.base == nil {
		return s
	}
	ref, err := url.Parse(s)
	if err != nil {
		return s
	}
	return r.base.ResolveReference(ref).String()
}

// ShouldProxy reports whether raw needs to be routed through the proxy.
//
// Only URLs spelled with an http prefix are checked against the page host;
// protocol-relative and path-absolute forms are proxied even when they point
// back at the page's own host.
func (r *Rewriter) ShouldProxy(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, r.cfg.Prefix) {
		return false
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(s, p) {
			return false
		}
	}
	if isSpecial(s) {
		return false
	}
	if strings.HasPrefix(s, "http") {
		if u, err := url.Parse(s); err == nil && u.Host != "" && u.Host == r.cfg.PageHost {
			return false
		}
	}
	return true
}

// Rewrite returns the proxy path for raw, or raw itself when it must not or
// cannot be proxied.
func (r *Rewriter) Rewrite(raw string) (out string) {
	defer func() {
		if recover() != nil {
			out = raw
		}
	}()
	if !r.ShouldProxy(raw) {
		return raw
	}
	abs := r.Normalize(raw)
	if !isHTTP(abs) {
		return raw
	}
	return r.cfg.Prefix + Encode(abs)
}

// RewriteSrcList rewrites the URL of every "URL [descriptor]" entry of a
// srcset value, keeping descriptors and order.
func (r *Rewriter) RewriteSrcList(value string) string {
	entries := strings.Split(value, ",")
	for i, entry := range entries {
		parts := strings.Fields(entry)
		if len(parts) > 0 {
			parts[0] = r.Rewrite(parts[0])
		}
		entries[i] = strings.Join(parts, " ")
	}
	return strings.Join(entries, ", ")
}

// DecodePath reverses Rewrite for a path under the configured prefix.
func (r *Rewriter) DecodePath(path string) (string, error) {
	token, ok := strings.CutPrefix(path, r.cfg.Prefix)
	if !ok {
		return "", ErrNotProxied
	}
	return Decode(token)
}
