package rewrite

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// markupAttrs are the attributes rewritten inside markup strings.
var markupAttrs = map[string]bool{
	"src":    true,
	"href":   true,
	"action": true,
	"poster": true,
	"data":   true,
}

var markupAttrPattern = regexp.MustCompile(`(?i)(src|href|action|poster|data)\s*=\s*["']([^"']+)["']`)

// RewriteMarkup rewrites URL attributes inside an HTML string, as passed to
// document.write. Complete fragments are tokenized and only start tags with
// a changed attribute are re-serialized; everything else keeps its original
// bytes. Fragments that stop mid-tag fall back to a quoted attr="value" scan.
func (r *Rewriter) RewriteMarkup(markup string) string {
	if markup == "" {
		return markup
	}
	if out, ok := r.rewriteTokens(markup); ok {
		return out
	}
	return r.rewriteMarkupText(markup)
}

func (r *Rewriter) rewriteTokens(markup string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	b.Grow(len(markup))
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF && consumed == len(markup) {
				return b.String(), true
			}
			return "", false
		}
		// Token lower-cases the raw buffer in place, so copy first.
		raw := string(z.Raw())
		consumed += len(raw)
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			b.WriteString(raw)
			continue
		}
		tok := z.Token()
		changed := false
		for i, a := range tok.Attr {
			if a.Namespace != "" || !markupAttrs[a.Key] {
				continue
			}
			if v := r.Rewrite(a.Val); v != a.Val {
				tok.Attr[i].Val = v
				changed = true
			}
		}
		if changed {
			b.WriteString(tok.String())
		} else {
			b.WriteString(raw)
		}
	}
}

func (r *Rewriter) rewriteMarkupText(markup string) string {
	return markupAttrPattern.ReplaceAllStringFunc(markup, func(m string) string {
		sub := markupAttrPattern.FindStringSubmatch(m)
		if len(sub) < 3 {
			return m
		}
		return sub[1] + `="` + r.Rewrite(sub[2]) + `"`
	})
}
