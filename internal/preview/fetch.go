package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/net/html/charset"
)

// ErrBlockedTarget is returned for targets that are not absolute http(s) URLs.
var ErrBlockedTarget = errors.New("preview: target must be an absolute http(s) URL")

const (
	maxBodyBytes = 8 << 20
	maxRedirects = 10
)

// fetchedPage is an upstream document decoded to UTF-8.
type fetchedPage struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// pageLoader retrieves a page for preview.
type pageLoader interface {
	Load(ctx context.Context, target string, hdr http.Header, jar http.CookieJar, site *SiteConfig) (*fetchedPage, error)
}

// checkTarget rejects anything the preview must not fetch.
func checkTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlockedTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrBlockedTarget
	}
	return u, nil
}

type staticLoader struct {
	client *http.Client
}

func (l *staticLoader) Load(ctx context.Context, target string, hdr http.Header, jar http.CookieJar, _ *SiteConfig) (*fetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	copyHeader(req.Header, hdr)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pagehook-preview)")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}

	client := *l.client
	if jar != nil {
		client.Jar = jar
	}
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if _, err := checkTarget(next.URL.String()); err != nil {
			return err
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	header := cloneHeader(resp.Header)
	// the body has been transcoded
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &fetchedPage{
		URL:    final,
		Status: resp.StatusCode,
		Header: header,
		Body:   data,
	}, nil
}
