package hook

import (
	"strings"

	"golang.org/x/net/html"

	"pagehook/internal/dom"
	"pagehook/internal/rewrite"
)

// Attributes wraps the raw attribute primitive. External writes of URL-bearing
// attributes are rewritten; writes stamped with any other origin pass through.
type Attributes struct {
	raw dom.AttributeSetter
	rw  *rewrite.Rewriter
}

// NewAttributes wraps raw.
func NewAttributes(raw dom.AttributeSetter, rw *rewrite.Rewriter) *Attributes {
	return &Attributes{raw: raw, rw: rw}
}

// SetAttribute implements dom.AttributeSetter.
func (a *Attributes) SetAttribute(origin dom.Origin, n *html.Node, name, value string) error {
	if origin == dom.External && rewrite.IsURLAttribute(name) {
		value = guard(value, func() string {
			if strings.EqualFold(name, "srcset") {
				return a.rw.RewriteSrcList(value)
			}
			return a.rw.Rewrite(value)
		})
	}
	return a.raw.SetAttribute(origin, n, name, value)
}
