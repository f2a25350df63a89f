package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"pagehook/internal/dom"
	"pagehook/internal/rewrite"
)

func testRewriter() *rewrite.Rewriter {
	return rewrite.New(rewrite.Config{
		Prefix:       "/p/",
		BaseURL:      "https://example.com/dir/",
		TargetOrigin: "https://example.com",
		PageHost:     "proxy.local",
	})
}

func enc(s string) string { return "/p/" + rewrite.Encode(s) }

const fixture = `<html><body>
<a id="a" href="/x">x</a><img id="img"><iframe id="frame"></iframe><video id="vid"></video>
<div id="div"></div><form id="form"><button id="btn">go</button></form>
</body></html>`

func node(t *testing.T, d *dom.Document, id string) *html.Node {
	t.Helper()
	nodes, err := d.QuerySelectorAll("#" + id)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	return nodes[0]
}

func TestAttributesRewriteExternalWrites(t *testing.T) {
	t.Parallel()
	d, err := dom.ParseString(fixture)
	require.NoError(t, err)
	attrs := NewAttributes(d, testRewriter())
	img := node(t, d, "img")

	tests := []struct {
		name  string
		attr  string
		value string
		want  string
	}{
		{"src", "src", "https://cdn.other.org/a.png", enc("https://cdn.other.org/a.png")},
		{"upper case name", "SRC", "/b.png", enc("https://example.com/b.png")},
		{"srcset", "srcset", "/a.png 1x, /b.png 2x", enc("https://example.com/a.png") + " 1x, " + enc("https://example.com/b.png") + " 2x"},
		{"not url bearing", "alt", "https://cdn.other.org/a.png", "https://cdn.other.org/a.png"},
		{"special scheme", "src", "data:image/gif;base64,R0lG", "data:image/gif;base64,R0lG"},
		{"same host", "src", "http://proxy.local/a.png", "http://proxy.local/a.png"},
	}
	for _, tt := range tests {
		require.NoError(t, attrs.SetAttribute(dom.External, img, tt.attr, tt.value), tt.name)
		got, _ := d.GetAttribute(img, tt.attr)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestAttributesPassOwnWritesThrough(t *testing.T) {
	t.Parallel()
	d, err := dom.ParseString(fixture)
	require.NoError(t, err)
	attrs := NewAttributes(d, testRewriter())
	img := node(t, d, "img")

	require.NoError(t, attrs.SetAttribute(dom.NewOrigin(), img, "src", "/raw.png"))
	got, _ := d.GetAttribute(img, "src")
	assert.Equal(t, "/raw.png", got)

	require.ErrorIs(t, attrs.SetAttribute(dom.External, d.Root(), "src", "/x"), dom.ErrNotElement)
}

func TestPropertiesFollowTable(t *testing.T) {
	t.Parallel()
	d, err := dom.ParseString(fixture)
	require.NoError(t, err)
	props := NewProperties(d, testRewriter())

	tests := []struct {
		id, prop, attr string
		rewritten      bool
	}{
		{"a", "href", "href", true},
		{"img", "src", "src", true},
		{"frame", "src", "src", true},
		{"vid", "src", "src", true},
		{"form", "action", "action", true},
		{"btn", "formAction", "formaction", true},
		{"div", "id", "id", false},
		{"img", "srcset", "srcset", false},
	}
	for _, tt := range tests {
		n := node(t, d, tt.id)
		require.NoError(t, props.SetProperty(dom.External, n, tt.prop, "https://other.org/"+tt.id))
		got, err := props.Property(n, tt.prop)
		require.NoError(t, err)
		if tt.rewritten {
			assert.Equal(t, enc("https://other.org/"+tt.id), got, tt.id+"."+tt.prop)
		} else {
			assert.Equal(t, "https://other.org/"+tt.id, got, tt.id+"."+tt.prop)
		}
		raw, _ := d.GetAttribute(n, tt.attr)
		assert.Equal(t, got, raw)
	}
}

func TestURLPropertiesTable(t *testing.T) {
	t.Parallel()
	assert.Len(t, URLProperties, 11)
	assert.True(t, IsURLProperty("button", "formAction"))
	assert.False(t, IsURLProperty("button", "formaction"))
	assert.False(t, IsURLProperty("div", "src"))
}

func TestMarkupWriterRewritesEachArgument(t *testing.T) {
	t.Parallel()
	d, err := dom.ParseString(fixture)
	require.NoError(t, err)
	w := NewMarkupWriter(d, testRewriter())

	require.NoError(t, w.Write(dom.External, `<img id="w1" src="https://cdn.other.org/1.png">`, `<a id="w2" href='/next'>n</a>`))
	require.NoError(t, w.Writeln(dom.External, `<script id="w3" src="data:text/javascript,1"></script>`))

	v, _ := d.GetAttribute(node(t, d, "w1"), "src")
	assert.Equal(t, enc("https://cdn.other.org/1.png"), v)
	v, _ = d.GetAttribute(node(t, d, "w2"), "href")
	assert.Equal(t, enc("https://example.com/next"), v)
	v, _ = d.GetAttribute(node(t, d, "w3"), "src")
	assert.Equal(t, "data:text/javascript,1", v)
}

type recordingInserter struct{ rules []string }

func (r *recordingInserter) InsertRule(rule string, index int) (int, error) {
	r.rules = append(r.rules, rule)
	return index, nil
}

func TestRuleInserter(t *testing.T) {
	t.Parallel()
	raw := &recordingInserter{}
	ins := NewRuleInserter(raw, testRewriter())

	idx, err := ins.InsertRule(`.a { color: red; }`, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	_, err = ins.InsertRule(`.b { background: url('/bg.png') no-repeat; }`, 0)
	require.NoError(t, err)

	require.Len(t, raw.rules, 2)
	assert.Equal(t, `.a { color: red; }`, raw.rules[0])
	assert.Contains(t, raw.rules[1], `url("`+enc("https://example.com/bg.png")+`")`)
	assert.Contains(t, raw.rules[1], "no-repeat")
}

func TestRuleInserterOnStyleSheet(t *testing.T) {
	t.Parallel()
	sheet, err := dom.NewStyleSheet("")
	require.NoError(t, err)
	ins := NewRuleInserter(sheet, testRewriter())
	_, err = ins.InsertRule(`.c { background-image: url(https://cdn.other.org/c.png); }`, 0)
	require.NoError(t, err)
	rule, err := sheet.Rule(0)
	require.NoError(t, err)
	assert.Contains(t, rule, enc("https://cdn.other.org/c.png"))

	_, err = ins.InsertRule(`.d { color: blue; }`, 7)
	require.ErrorIs(t, err, dom.ErrIndexSize)
}

func TestGuardFailsOpen(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "orig", guard("orig", func() string { panic("boom") }))
	assert.Equal(t, "new", guard("orig", func() string { return "new" }))
}
