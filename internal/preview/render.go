package preview

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const defaultRenderTimeout = 25 * time.Second

// jsRenderer loads pages in headless Chrome so that script-built markup is
// part of the preview.
type jsRenderer struct {
	allocator context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
}

func newJSRenderer(logger *log.Logger) (*jsRenderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-extensions", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &jsRenderer{allocator: allocCtx, cancel: cancel, logger: logger}, nil
}

func (r *jsRenderer) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// networkTracker counts in-flight requests for the network-idle wait.
type networkTracker struct {
	mu       sync.Mutex
	active   int
	last     time.Time
	mainID   network.RequestID
	mainResp *network.Response
}

func (t *networkTracker) listen(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.active++
		t.last = time.Now()
		if e.Type == network.ResourceTypeDocument && t.mainID == "" {
			t.mainID = e.RequestID
		}
	case *network.EventLoadingFinished:
		if t.active > 0 {
			t.active--
		}
		t.last = time.Now()
	case *network.EventLoadingFailed:
		if t.active > 0 {
			t.active--
		}
		t.last = time.Now()
	case *network.EventResponseReceived:
		if e.RequestID == t.mainID {
			t.mainResp = e.Response
		}
	}
}

func (t *networkTracker) idleFor(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active == 0 && time.Since(t.last) >= d
}

func (r *jsRenderer) Load(ctx context.Context, target string, hdr http.Header, jar http.CookieJar, site *SiteConfig) (*fetchedPage, error) {
	taskCtx, cancelBrowser := chromedp.NewContext(r.allocator)
	defer cancelBrowser()
	stop := context.AfterFunc(ctx, cancelBrowser)
	defer stop()

	timeout := defaultRenderTimeout
	if site != nil && site.TimeoutMS > 0 {
		timeout = time.Duration(site.TimeoutMS) * time.Millisecond
	}
	taskCtx, cancel := context.WithTimeout(taskCtx, timeout)
	defer cancel()

	tracker := &networkTracker{last: time.Now()}
	chromedp.ListenTarget(taskCtx, tracker.listen)

	requestHeaders := cloneHeader(hdr)
	actions := []chromedp.Action{network.Enable()}
	if ua := requestHeaders.Get("User-Agent"); ua != "" {
		actions = append(actions, emulation.SetUserAgentOverride(ua))
		requestHeaders.Del("User-Agent")
	}
	if extra := extraHeaders(requestHeaders); len(extra) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(extra))
	}
	if params := jarCookieParams(jar, target); len(params) > 0 {
		actions = append(actions, network.SetCookies(params))
	}

	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if site != nil {
		if sel := strings.TrimSpace(site.WaitSelector); sel != "" {
			actions = append(actions, chromedp.WaitVisible(sel, chromedp.ByQuery))
		}
		if site.WaitNetworkIdleMS > 0 {
			idle := time.Duration(site.WaitNetworkIdleMS) * time.Millisecond
			actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
				ticker := time.NewTicker(50 * time.Millisecond)
				defer ticker.Stop()
				for !tracker.idleFor(idle) {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-ticker.C:
					}
				}
				return nil
			}))
		}
		if site.WaitAfterLoadMS > 0 {
			actions = append(actions, chromedp.Sleep(time.Duration(site.WaitAfterLoadMS)*time.Millisecond))
		}
		for _, snippet := range site.Scripts {
			if code := strings.TrimSpace(snippet); code != "" {
				actions = append(actions, chromedp.Evaluate(code, nil))
			}
		}
	}

	var finalURL, htmlContent string
	var browserCookies []*network.Cookie
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			browserCookies, err = network.GetCookies().WithUrls([]string{firstNonEmpty(finalURL, target)}).Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("render %s: %w", target, err)
	}
	if finalURL == "" {
		finalURL = target
	}

	if jar != nil && len(browserCookies) > 0 {
		if u, err := url.Parse(finalURL); err == nil {
			cookies := make([]*http.Cookie, 0, len(browserCookies))
			for _, c := range browserCookies {
				if hc := cookieFromNetwork(c); hc != nil {
					cookies = append(cookies, hc)
				}
			}
			jar.SetCookies(u, cookies)
		}
	}

	page := &fetchedPage{
		URL:    finalURL,
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:   []byte(htmlContent),
	}
	tracker.mu.Lock()
	if tracker.mainResp != nil {
		page.Status = int(tracker.mainResp.Status)
	}
	tracker.mu.Unlock()
	r.logger.Printf("JS rendered %s -> %s (%d bytes)", target, finalURL, len(htmlContent))
	return page, nil
}

func extraHeaders(h http.Header) network.Headers {
	extra := network.Headers{}
	for k, vs := range h {
		name := http.CanonicalHeaderKey(k)
		if name == "Content-Length" || len(vs) == 0 {
			continue
		}
		extra[name] = strings.Join(vs, ", ")
	}
	return extra
}

func jarCookieParams(jar http.CookieJar, target string) []*network.CookieParam {
	if jar == nil {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	cookies := jar.Cookies(u)
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   cookieDomainForParam(c, u),
			Path:     cookiePathForParam(c),
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(c.Expires.UTC())
			param.Expires = &exp
		}
		params = append(params, param)
	}
	return params
}

func cookieFromNetwork(c *network.Cookie) *http.Cookie {
	if c == nil {
		return nil
	}
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if !c.Session && c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		hc.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	switch c.SameSite {
	case network.CookieSameSiteLax:
		hc.SameSite = http.SameSiteLaxMode
	case network.CookieSameSiteStrict:
		hc.SameSite = http.SameSiteStrictMode
	case network.CookieSameSiteNone:
		hc.SameSite = http.SameSiteNoneMode
	}
	return hc
}

func cookieDomainForParam(c *http.Cookie, u *url.URL) string {
	if c.Domain != "" {
		return c.Domain
	}
	if u != nil {
		return u.Hostname()
	}
	return ""
}

func cookiePathForParam(c *http.Cookie) string {
	if c.Path != "" {
		return c.Path
	}
	return "/"
}
