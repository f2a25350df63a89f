package preview

import (
	"net/url"
	"strings"
)

// urlDecode undoes percent-encoding applied by forms or by a link that
// wrapped the target once more. Malformed input is returned unchanged.
func urlDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}

// buildURL resolves a form's action against the page it was submitted from
// and appends the submitted query.
func buildURL(base, action, get string) string {
	base = urlDecode(urlDecode(base))
	target, err := url.Parse(base)
	if err != nil {
		return base
	}
	if action != "" {
		if ref, err := url.Parse(urlDecode(action)); err == nil {
			target = target.ResolveReference(ref)
		}
	}
	if get != "" {
		if target.RawQuery != "" {
			target.RawQuery += "&" + get
		} else {
			target.RawQuery = get
		}
	}
	return target.String()
}
