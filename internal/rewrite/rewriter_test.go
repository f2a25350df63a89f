package rewrite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRewriter() *Rewriter {
	return New(Config{
		Prefix:       "/p/",
		BaseURL:      "https://example.com/dir/page.html",
		TargetOrigin: "https://example.com",
		PageHost:     "proxy.local:8080",
	})
}

func enc(s string) string { return "/p/" + Encode(s) }

func TestNormalize(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"absolute", "https://other.org/a?b=1", "https://other.org/a?b=1"},
		{"trims", "  https://other.org/a  ", "https://other.org/a"},
		{"protocol relative", "//cdn.other.org/lib.js", "https://cdn.other.org/lib.js"},
		{"path absolute", "/img/a.png", "https://example.com/img/a.png"},
		{"relative", "next.html", "https://example.com/dir/next.html"},
		{"parent relative", "../up.css", "https://example.com/up.css"},
		{"query only", "?page=2", "https://example.com/dir/page.html?page=2"},
		{"data", "data:text/plain,hi", "data:text/plain,hi"},
		{"fragment", "#top", "#top"},
		{"mailto", "mailto:a@b.c", "mailto:a@b.c"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, rw.Normalize(tc.in))
		})
	}
}

func TestNormalizeWithoutBaseFailsOpen(t *testing.T) {
	t.Parallel()
	rw := New(Config{TargetOrigin: "https://example.com"})
	assert.Equal(t, "next.html", rw.Normalize("next.html"))
	assert.Equal(t, "next.html", rw.Rewrite("next.html"))
}

func TestNormalizeProtocolRelativeUsesOriginScheme(t *testing.T) {
	t.Parallel()
	rw := New(Config{TargetOrigin: "http://plain.example"})
	assert.Equal(t, "http://cdn.example/x.js", rw.Normalize("//cdn.example/x.js"))

	rw = New(Config{})
	assert.Equal(t, "https://cdn.example/x.js", rw.Normalize("//cdn.example/x.js"))
}

func TestShouldProxy(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"/p/abc", false},
		{"/static/app.css", false},
		{"data:image/png;base64,AAA", false},
		{"blob:https://example.com/1234", false},
		{"javascript:void(0)", false},
		{"#frag", false},
		{"about:blank", false},
		{"mailto:a@b.c", false},
		{"http://proxy.local:8080/anything", false},
		{"https://other.org/", true},
		{"/img/a.png", true},
		{"relative.html", true},
		{"//cdn.other.org/x.js", true},
	}
	for _, tc := range tests {
		tc := tc
		assert.Equal(t, tc.want, rw.ShouldProxy(tc.in), "ShouldProxy(%q)", tc.in)
	}
}

func TestShouldProxySameHostOnlyForHTTPSpelling(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	// protocol-relative and path-absolute forms skip the host comparison
	assert.True(t, rw.ShouldProxy("//proxy.local:8080/x"))
	assert.False(t, rw.ShouldProxy("https://proxy.local:8080/x"))
}

func TestShouldProxyCustomPrefix(t *testing.T) {
	t.Parallel()
	rw := New(Config{Prefix: "/go/", TargetOrigin: "https://example.com"})
	assert.False(t, rw.ShouldProxy("/go/abc"))
	assert.False(t, rw.ShouldProxy("/p/abc"))
	assert.True(t, rw.ShouldProxy("/img/a.png"))
	assert.True(t, strings.HasPrefix(rw.Rewrite("/img/a.png"), "/go/"))
}

func TestRewriteRoundTrip(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	for _, u := range []string{
		"https://other.org/",
		"http://other.org/path?q=1&r=2#frag",
		"https://例え.jp/パス?キー=値",
		"https://other.org/a+b/c?d=e/f",
	} {
		got := rw.Rewrite(u)
		require.True(t, strings.HasPrefix(got, "/p/"), got)
		require.NotContains(t, got, "=")
		decoded, err := rw.DecodePath(got)
		require.NoError(t, err)
		assert.Equal(t, u, decoded)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	for _, u := range []string{
		"https://other.org/x", "/img/a.png", "rel/x.js", "//cdn.org/y", "#a", "", "data:,x",
		"http://proxy.local:8080/self", "javascript:alert(1)",
	} {
		once := rw.Rewrite(u)
		assert.Equal(t, once, rw.Rewrite(once), "input %q", u)
	}
}

func TestRewriteLeavesUnproxyableUnchanged(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	for _, u := range []string{
		"data:image/png;base64,AAA", "blob:https://example.com/1", "javascript:void(0)",
		"#frag", "about:blank", "mailto:a@b.c", "https://proxy.local:8080/own",
		"/static/app.js", "/p/aHR0cHM6Ly9leGFtcGxlLmNvbS8",
	} {
		assert.Equal(t, u, rw.Rewrite(u))
	}
}

func TestRewriteFailsOpenOnNonHTTPResult(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	assert.Equal(t, "ws://chat.other.org/socket", rw.Rewrite("ws://chat.other.org/socket"))
	assert.Equal(t, "tel:+15550100", rw.Rewrite("tel:+15550100"))
}

func TestRewriteSrcList(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	got := rw.RewriteSrcList("/img/a.png 1x, /img/b.png 2x")
	want := enc("https://example.com/img/a.png") + " 1x, " + enc("https://example.com/img/b.png") + " 2x"
	assert.Equal(t, want, got)

	got = rw.RewriteSrcList("https://other.org/w.png 480w,https://other.org/x.png")
	want = enc("https://other.org/w.png") + " 480w, " + enc("https://other.org/x.png")
	assert.Equal(t, want, got)

	assert.Equal(t, got, rw.RewriteSrcList(got))
}

func TestDecode(t *testing.T) {
	t.Parallel()
	got, err := Decode(Encode("https://example.com/?a=b") + "==")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/?a=b", got)

	_, err = Decode("***")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = newTestRewriter().DecodePath("/other/abc")
	require.ErrorIs(t, err, ErrNotProxied)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "pagehook.yaml")
	data := "prefix: /go/\nbase_url: https://example.com/\ntarget_origin: https://example.com/\npage_host: proxy.local\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/go/", cfg.Prefix)
	assert.Equal(t, "proxy.local", cfg.PageHost)
	assert.Equal(t, "https://example.com", New(cfg).Config().TargetOrigin)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PAGEHOOK_PREFIX", "/x/")
	t.Setenv("PAGEHOOK_ORIGIN", "https://example.com")
	cfg := ConfigFromEnv()
	assert.Equal(t, "/x/", cfg.Prefix)
	assert.Equal(t, "https://example.com", cfg.TargetOrigin)
	assert.Equal(t, DefaultPrefix, New(Config{}).Prefix())
}

func TestRewriteAttribute(t *testing.T) {
	t.Parallel()
	rw := newTestRewriter()
	assert.Equal(t, enc("https://example.com/a"), rw.RewriteAttribute("HREF", "/a"))
	assert.Equal(t, enc("https://example.com/a")+" 2x", rw.RewriteAttribute("srcset", "/a 2x"))
	assert.Equal(t, `background:url("`+enc("https://example.com/a")+`")`, rw.RewriteAttribute("style", "background:url(/a)"))
	assert.Equal(t, "/a", rw.RewriteAttribute("title", "/a"))
	assert.True(t, IsURLAttribute("FormAction"))
	assert.False(t, IsURLAttribute("style"))
}
