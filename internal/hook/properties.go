package hook

import (
	"golang.org/x/net/html"

	"pagehook/internal/dom"
	"pagehook/internal/rewrite"
)

// PropertyKey names a URL property of one element type.
type PropertyKey struct {
	Tag      string
	Property string
}

// URLProperties lists every element property whose setter is rewritten.
var URLProperties = []PropertyKey{
	{"a", "href"},
	{"img", "src"},
	{"script", "src"},
	{"link", "href"},
	{"iframe", "src"},
	{"source", "src"},
	{"audio", "src"},
	{"video", "src"},
	{"form", "action"},
	{"input", "formAction"},
	{"button", "formAction"},
}

var urlProperties = func() map[PropertyKey]bool {
	m := make(map[PropertyKey]bool, len(URLProperties))
	for _, k := range URLProperties {
		m[k] = true
	}
	return m
}()

// IsURLProperty reports whether the property of the given element is in URLProperties.
func IsURLProperty(tag, property string) bool {
	return urlProperties[PropertyKey{tag, property}]
}

// Properties wraps a property primitive so that URL property setters rewrite
// their value. Getters are not touched.
type Properties struct {
	raw dom.PropertySetter
	rw  *rewrite.Rewriter
}

// NewProperties wraps raw.
func NewProperties(raw dom.PropertySetter, rw *rewrite.Rewriter) *Properties {
	return &Properties{raw: raw, rw: rw}
}

// Property implements dom.PropertySetter.
func (p *Properties) Property(n *html.Node, name string) (string, error) {
	return p.raw.Property(n, name)
}

// SetProperty implements dom.PropertySetter.
func (p *Properties) SetProperty(origin dom.Origin, n *html.Node, name, value string) error {
	if n != nil && n.Type == html.ElementNode && IsURLProperty(n.Data, name) {
		value = guard(value, func() string { return p.rw.Rewrite(value) })
	}
	return p.raw.SetProperty(origin, n, name, value)
}
