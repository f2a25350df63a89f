package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"pagehook/internal/rewrite"
)

const defaultPageHost = "localhost"

var errMissingBase = errors.New("a base URL is required (--base, PAGEHOOK_BASE or --config)")

// addRewriteFlags registers the flags that describe the page being rewritten.
func addRewriteFlags(cmd *cobra.Command) {
	cmd.Flags().String("base", "", "URL the page was loaded from")
	cmd.Flags().String("origin", "", "real origin being proxied (default: origin of --base)")
	cmd.Flags().String("host", "", "host the rewritten page is served from (default: localhost)")
	cmd.Flags().String("prefix", "", "proxy path prefix (default: /p/)")
	cmd.Flags().StringP("config", "c", "", "YAML rewriter config file")
}

// rewriteConfig resolves the rewriter configuration. Flags win over the
// config file, which wins over PAGEHOOK_* variables.
func rewriteConfig(cmd *cobra.Command) (rewrite.Config, error) {
	cfg := rewrite.ConfigFromEnv()
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return cfg, err
	}
	if path != "" {
		file, err := rewrite.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = merge(cfg, file)
	}

	var flags rewrite.Config
	for name, dst := range map[string]*string{
		"base":   &flags.BaseURL,
		"origin": &flags.TargetOrigin,
		"host":   &flags.PageHost,
		"prefix": &flags.Prefix,
	} {
		if *dst, err = cmd.Flags().GetString(name); err != nil {
			return cfg, err
		}
	}
	cfg = merge(cfg, flags)

	if cfg.BaseURL == "" {
		return cfg, errMissingBase
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return cfg, fmt.Errorf("base URL %q is not absolute", cfg.BaseURL)
	}
	if cfg.TargetOrigin == "" {
		cfg.TargetOrigin = base.Scheme + "://" + base.Host
	}
	if cfg.PageHost == "" {
		cfg.PageHost = defaultPageHost
	}
	return cfg, nil
}

// merge returns base with every non-empty field of over applied.
func merge(base, over rewrite.Config) rewrite.Config {
	if over.Prefix != "" {
		base.Prefix = over.Prefix
	}
	if over.BaseURL != "" {
		base.BaseURL = over.BaseURL
	}
	if over.TargetOrigin != "" {
		base.TargetOrigin = over.TargetOrigin
	}
	if over.PageHost != "" {
		base.PageHost = over.PageHost
	}
	return base
}

// pageLocation is where the rewritten page pretends to be open.
func pageLocation(cfg rewrite.Config) string {
	loc := rewrite.New(cfg).Rewrite(cfg.BaseURL)
	if strings.HasPrefix(loc, "/") {
		return "http://" + cfg.PageHost + loc
	}
	return loc
}
