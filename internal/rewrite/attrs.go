package rewrite

import "strings"

// URLAttributes are the attribute names that carry URLs.
var URLAttributes = []string{"src", "href", "action", "poster", "data", "srcset", "formaction"}

// StyleAttribute carries url() references inside inline CSS.
const StyleAttribute = "style"

// IsURLAttribute reports whether name is URL-bearing, ignoring case.
func IsURLAttribute(name string) bool {
	name = strings.ToLower(name)
	for _, a := range URLAttributes {
		if a == name {
			return true
		}
	}
	return false
}

// RewriteAttribute rewrites value as the content of the named attribute:
// srcset lists entry by entry, style through its url() references, and any
// other URL-bearing attribute as a single URL. Other attributes are returned
// unchanged.
func (r *Rewriter) RewriteAttribute(name, value string) string {
	switch name = strings.ToLower(name); {
	case name == "srcset":
		return r.RewriteSrcList(value)
	case name == StyleAttribute:
		return r.RewriteCSSURLs(value)
	case IsURLAttribute(name):
		return r.Rewrite(value)
	}
	return value
}
