package preview

import (
	"net/http"
	"strings"
)

// normalizeTarget turns what a visitor typed into a URL, decoding it and
// defaulting the scheme to http.
func normalizeTarget(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	s = urlDecode(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	if strings.Contains(s, "://") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return s
	}
	return "http://" + strings.TrimPrefix(s, "//")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func cloneHeader(h http.Header) http.Header {
	out := http.Header{}
	copyHeader(out, h)
	return out
}

// serverBase is the scheme and host the visitor reached us on.
func serverBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
