package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagehook/internal/preview"
	"pagehook/internal/rewrite"
)

const page = `<html><head><link rel="stylesheet" href="site.css"></head><body>` +
	`<a id="up" href="/x">x</a><a href="#top">top</a><img src="img.png"></body></html>`

func enc(s string) string { return "/p/" + rewrite.Encode(s) }

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCmd(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()
	for _, name := range []string{"serve", "rewrite", "decode", "sweep", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))

	out, _, err := run(t, NewRootCmd(), "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pagehook version "))
}

func TestRewriteFromStdin(t *testing.T) {
	t.Parallel()
	out, _, err := run(t, NewRewriteCmd(), page,
		"--base", "https://example.com/docs/", "--host", "proxy.local")
	require.NoError(t, err)

	assert.Contains(t, out, `href="`+enc("https://example.com/x")+`"`)
	assert.Contains(t, out, `src="`+enc("https://example.com/docs/img.png")+`"`)
	assert.Contains(t, out, `href="`+enc("https://example.com/docs/site.css")+`"`)
	assert.Contains(t, out, `href="#top"`)
}

func TestRewriteReportFromFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(in, []byte(page), 0o600))
	cfgPath := filepath.Join(dir, "rewrite.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("base_url: https://example.com/docs/\npage_host: proxy.local\nprefix: /q/\n"), 0o600))

	out, _, err := run(t, NewRewriteCmd(), "", "-c", cfgPath, "--report", in)
	require.NoError(t, err)

	var rep preview.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "https://example.com/docs/", rep.URL)
	assert.Equal(t, "/q/", rep.Config.Prefix)
	assert.Equal(t, "https://example.com", rep.Config.TargetOrigin)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Rewritten["href"])
	assert.Equal(t, 1, rep.Rewritten["src"])
}

func TestRewriteFlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rewrite.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("base_url: https://old.example/\n"), 0o600))
	dst := filepath.Join(dir, "out.html")

	_, _, err := run(t, NewRewriteCmd(), page, "-c", cfgPath, "--base", "https://new.example/", "-o", dst)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), enc("https://new.example/x"))
}

func TestRewriteRequiresBase(t *testing.T) {
	t.Parallel()
	cmd := NewRewriteCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	if os.Getenv("PAGEHOOK_BASE") == "" {
		_, err := rewriteConfig(cmd)
		assert.ErrorIs(t, err, errMissingBase)
	}

	_, _, err := run(t, NewRewriteCmd(), page, "--base", "docs/")
	assert.Error(t, err)
	_, _, err = run(t, NewRewriteCmd(), page, "-c", filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, rewrite.ErrConfigNotFound)
}

func TestPageLocation(t *testing.T) {
	t.Parallel()
	cfg := rewrite.Config{BaseURL: "https://example.com/", PageHost: "proxy.local"}
	assert.Equal(t, "http://proxy.local"+enc("https://example.com/"), pageLocation(cfg))

	own := rewrite.Config{BaseURL: "http://proxy.local/a", PageHost: "proxy.local"}
	assert.Equal(t, "http://proxy.local/a", pageLocation(own))
}

func TestDecode(t *testing.T) {
	t.Parallel()
	token := rewrite.Encode("https://example.com/a?b=c")
	out, _, err := run(t, NewDecodeCmd(), "", token, "/p/"+token, "http://proxy.local/p/"+token)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("https://example.com/a?b=c\n", 3), out)

	out, _, err = run(t, NewDecodeCmd(), "", "--prefix", "/q/", "/q/"+token)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a?b=c\n", out)

	_, _, err = run(t, NewDecodeCmd(), "", "/other/"+token)
	assert.ErrorIs(t, err, rewrite.ErrNotProxied)
	_, _, err = run(t, NewDecodeCmd(), "", "@@@")
	assert.ErrorIs(t, err, rewrite.ErrInvalidToken)
}

func TestSweep(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o750))
	index := filepath.Join(root, "index.html")
	nested := filepath.Join(root, "docs", "guide.html")
	require.NoError(t, os.WriteFile(index, []byte(page), 0o600))
	require.NoError(t, os.WriteFile(nested, []byte(`<img src="shot.png">`), 0o600))
	out := t.TempDir()

	stdout, _, err := run(t, NewSweepCmd(), "",
		"--base", "https://example.com/", "--root", root, "--out", out, "-j", "2", index, nested)
	require.NoError(t, err)
	assert.Equal(t, index+": 3 rewritten in 3 elements\n"+nested+": 1 rewritten in 1 elements\n", stdout)

	data, err := os.ReadFile(filepath.Join(out, "docs", "guide.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), enc("https://example.com/docs/shot.png"))
}

func TestSweepReportsBrokenFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "good.html")
	require.NoError(t, os.WriteFile(good, []byte(page), 0o600))
	missing := filepath.Join(dir, "missing.html")

	stdout, stderr, err := run(t, NewSweepCmd(), "", "--base", "https://example.com/", good, missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errSweepFailed))
	assert.Contains(t, stdout, good+": 3 rewritten")
	assert.Contains(t, stderr, missing+":")
}

func TestFileBaseURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://example.com/site/docs/a.html", fileBaseURL("https://example.com/site/", "docs/a.html"))
	assert.Equal(t, "https://example.com/a.html", fileBaseURL("https://example.com/index.html", "a.html"))
}

func TestServeConfig(t *testing.T) {
	t.Parallel()
	cmd := NewServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--sites", "/etc/sites", "--ttl", "1m", "--prefix", "/q/"}))
	cfg, err := serveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/etc/sites", cfg.SitesDir)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "/q/", cfg.Prefix)

	flag := cmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Equal(t, defaultAddr, flag.DefValue)
}
