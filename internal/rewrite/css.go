package rewrite

import (
	"regexp"
	"strings"

	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/gorilla/css/scanner"
)

var cssURLPattern = regexp.MustCompile(`url\(\s*["']?([^)"']+?)["']?\s*\)`)

// RewriteCSSURLs rewrites every url(...) reference in CSS text, leaving data:
// URIs alone. Rewritten references are emitted as url("..."). Text inside
// string literals is never touched.
func (r *Rewriter) RewriteCSSURLs(text string) string {
	if !strings.Contains(text, "url(") {
		return text
	}
	if out, ok := r.rewriteCSSTokens(text); ok {
		return out
	}
	return cssURLPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := cssURLPattern.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return r.rewriteCSSRef(m, sub[1])
	})
}

// rewriteCSSTokens rewrites URI tokens only. It reports false when the text
// does not tokenize, e.g. an unterminated string.
func (r *Rewriter) rewriteCSSTokens(text string) (string, bool) {
	s := scanner.New(text)
	var b strings.Builder
	b.Grow(len(text))
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			return b.String(), true
		case scanner.TokenError:
			return "", false
		case scanner.TokenURI:
			b.WriteString(r.rewriteCSSRef(tok.Value, uriTokenValue(tok.Value)))
		default:
			b.WriteString(tok.Value)
		}
	}
}

// uriTokenValue strips url( ), surrounding whitespace and quotes.
func uriTokenValue(tok string) string {
	v := strings.TrimSpace(tok[len("url(") : len(tok)-1])
	if n := len(v); n >= 2 && (v[0] == '"' || v[0] == '\'') && v[n-1] == v[0] {
		v = v[1 : n-1]
	}
	return v
}

// rewriteCSSRef returns the replacement for the reference raw pointing at
// ref. Unchanged references keep their original spelling.
func (r *Rewriter) rewriteCSSRef(raw, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return raw
	}
	out := r.Rewrite(ref)
	if out == ref {
		return raw
	}
	return `url("` + out + `")`
}

// RewriteStyleRule rewrites url() references in a single stylesheet rule such
// as the text handed to insertRule. The rule is parsed and re-serialized when
// a reference is found in its declarations or prelude; otherwise the text is
// rewritten textually, which leaves it byte-for-byte intact when nothing matches.
func (r *Rewriter) RewriteStyleRule(rule string) string {
	if !strings.Contains(rule, "url(") {
		return rule
	}
	sheet, err := parser.Parse(rule)
	if err != nil || sheet == nil || len(sheet.Rules) == 0 {
		return r.RewriteCSSURLs(rule)
	}
	if !r.rewriteRules(sheet.Rules) {
		return r.RewriteCSSURLs(rule)
	}
	return strings.TrimSpace(sheet.String())
}

func (r *Rewriter) rewriteRules(rules []*cssast.Rule) bool {
	changed := false
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if rule.Kind == cssast.AtRule {
			if v := r.RewriteCSSURLs(rule.Prelude); v != rule.Prelude {
				rule.Prelude = v
				changed = true
			}
		}
		for _, decl := range rule.Declarations {
			if decl == nil {
				continue
			}
			if v := r.RewriteCSSURLs(decl.Value); v != decl.Value {
				decl.Value = v
				changed = true
			}
		}
		if len(rule.Rules) > 0 && r.rewriteRules(rule.Rules) {
			changed = true
		}
	}
	return changed
}
