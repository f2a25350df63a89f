package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteCSSURLs(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare path",
			in:   "background:url(/img/x.png)",
			want: `background:url("` + enc("https://example.com/img/x.png") + `")`,
		},
		{
			name: "single quoted absolute",
			in:   "background-image: url('https://cdn.other.org/bg.jpg'); color: red",
			want: `background-image: url("` + enc("https://cdn.other.org/bg.jpg") + `"); color: red`,
		},
		{
			name: "data uri untouched",
			in:   "background:url(data:image/png;base64,AAA)",
			want: "background:url(data:image/png;base64,AAA)",
		},
		{
			name: "whitespace inside parens",
			in:   `background:url( "/z.png" )`,
			want: `background:url("` + enc("https://example.com/z.png") + `")`,
		},
		{
			name: "string literal untouched",
			in:   `content:"url(/x)"; background:url(/y.png)`,
			want: `content:"url(/x)"; background:url("` + enc("https://example.com/y.png") + `")`,
		},
		{
			name: "unterminated string falls back to text",
			in:   `background:url(/a.png); content:"oops`,
			want: `background:url("` + enc("https://example.com/a.png") + `"); content:"oops`,
		},
		{
			name: "no url",
			in:   "color: blue",
			want: "color: blue",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, rw.RewriteCSSURLs(tc.in))
		})
	}
}

func TestRewriteCSSURLsIsStable(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	once := rw.RewriteCSSURLs("a{background:url(/a.png)} b{background:url(\"/b.png\")}")
	assert.Equal(t, once, rw.RewriteCSSURLs(once))
}

func TestRewriteStyleRule(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()

	got := rw.RewriteStyleRule(".hero { background: url(/img/hero.jpg) no-repeat; }")
	assert.Contains(t, got, `url("`+enc("https://example.com/img/hero.jpg")+`")`)
	assert.Contains(t, got, ".hero")
	assert.Contains(t, got, "no-repeat")
	assert.NotContains(t, got, "url(/img/hero.jpg)")

	got = rw.RewriteStyleRule("@media screen { .a { background: url('https://cdn.other.org/a.png'); } }")
	assert.Contains(t, got, enc("https://cdn.other.org/a.png"))
	assert.Contains(t, got, "@media")

	got = rw.RewriteStyleRule(".z { background: url( '/z.png' ) }")
	assert.Contains(t, got, `url("`+enc("https://example.com/z.png")+`")`)

	got = rw.RewriteStyleRule(`.q::before { content: "url(/x)"; background: url(/y.png) }`)
	assert.Contains(t, got, `"url(/x)"`)
	assert.Contains(t, got, enc("https://example.com/y.png"))

	got = rw.RewriteStyleRule(`@import url("https://cdn.other.org/theme.css");`)
	assert.Contains(t, got, enc("https://cdn.other.org/theme.css"))
}

func TestRewriteStyleRuleLeavesUntouchedRulesAlone(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	for _, rule := range []string{
		".a{color:red}",
		".b { background: url(data:image/gif;base64,R0lGOD); }",
		"  .c {   margin : 0 }  ",
		`.q::before { content: "url(/x)"; }`,
	} {
		assert.Equal(t, rule, rw.RewriteStyleRule(rule))
	}
}
