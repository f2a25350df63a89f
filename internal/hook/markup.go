package hook

import (
	"pagehook/internal/dom"
	"pagehook/internal/rewrite"
)

// MarkupWriter rewrites URL attributes in every string handed to the
// document.write family.
type MarkupWriter struct {
	raw dom.MarkupWriter
	rw  *rewrite.Rewriter
}

// NewMarkupWriter wraps raw.
func NewMarkupWriter(raw dom.MarkupWriter, rw *rewrite.Rewriter) *MarkupWriter {
	return &MarkupWriter{raw: raw, rw: rw}
}

func (m *MarkupWriter) rewriteAll(markup []string) []string {
	out := make([]string, len(markup))
	for i, s := range markup {
		out[i] = guard(s, func() string { return m.rw.RewriteMarkup(s) })
	}
	return out
}

// Write implements dom.MarkupWriter.
func (m *MarkupWriter) Write(origin dom.Origin, markup ...string) error {
	return m.raw.Write(origin, m.rewriteAll(markup)...)
}

// Writeln implements dom.MarkupWriter.
func (m *MarkupWriter) Writeln(origin dom.Origin, markup ...string) error {
	return m.raw.Writeln(origin, m.rewriteAll(markup)...)
}

// RuleInserter rewrites url() references in rules inserted into a stylesheet.
type RuleInserter struct {
	raw dom.RuleInserter
	rw  *rewrite.Rewriter
}

// NewRuleInserter wraps raw.
func NewRuleInserter(raw dom.RuleInserter, rw *rewrite.Rewriter) *RuleInserter {
	return &RuleInserter{raw: raw, rw: rw}
}

// InsertRule implements dom.RuleInserter.
func (r *RuleInserter) InsertRule(rule string, index int) (int, error) {
	rule = guard(rule, func() string { return r.rw.RewriteStyleRule(rule) })
	return r.raw.InsertRule(rule, index)
}
