package hook

import (
	"net/http"
	"net/url"

	"pagehook/internal/rewrite"
)

// Network rewrites the URL argument of request, navigation and construction
// calls. Rewritten paths are resolved against the page location when a full
// URL is needed.
type Network struct {
	rw   *rewrite.Rewriter
	page *url.URL
}

// NewNetwork returns a Network for the page at pageURL. An unusable pageURL
// only disables resolution of rewritten paths.
func NewNetwork(rw *rewrite.Rewriter, pageURL string) *Network {
	n := &Network{rw: rw}
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		n.page = u
	}
	return n
}

// RewriteURL rewrites a URL string, returning it unchanged on any failure.
func (n *Network) RewriteURL(raw string) string {
	return guard(raw, func() string { return n.rw.Rewrite(raw) })
}

// RewriteInput rewrites a string, *url.URL or *http.Request and returns a
// value of the same type. Requests are cloned, never modified. Any other
// input, and any input that fails to rewrite, is returned as is.
func (n *Network) RewriteInput(in any) (out any) {
	defer func() {
		if recover() != nil {
			out = in
		}
	}()
	switch v := in.(type) {
	case string:
		return n.RewriteURL(v)
	case *url.URL:
		if u := n.rewriteURL(v); u != nil {
			return u
		}
	case *http.Request:
		if v == nil {
			return in
		}
		if u := n.rewriteURL(v.URL); u != nil {
			req := v.Clone(v.Context())
			req.URL = u
			req.Host = ""
			return req
		}
	}
	return in
}

// rewriteURL returns the resolved rewritten URL, or nil when u is unchanged.
func (n *Network) rewriteURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	s := u.String()
	r := n.RewriteURL(s)
	if r == s {
		return nil
	}
	ref, err := url.Parse(r)
	if err != nil {
		return nil
	}
	if n.page != nil {
		ref = n.page.ResolveReference(ref)
	}
	return ref
}

// Transport is an http.RoundTripper that sends every request to its proxied
// location.
type Transport struct {
	// Base performs the request; http.DefaultTransport when nil.
	Base    http.RoundTripper
	Network *Network
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req
	if t.Network != nil {
		if r, ok := t.Network.RewriteInput(req).(*http.Request); ok && r.URL.IsAbs() {
			out = r
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

// XHROpenOptions carries the optional arguments of XMLHttpRequest.open.
type XHROpenOptions struct {
	Async    bool
	User     string
	Password string
}

// XHR is the open step of an XMLHttpRequest.
type XHR interface {
	Open(method, rawURL string, opts XHROpenOptions) error
}

type xhrHook struct {
	raw XHR
	net *Network
}

// WrapXHR rewrites the URL passed to Open.
func WrapXHR(x XHR, n *Network) XHR { return xhrHook{raw: x, net: n} }

func (h xhrHook) Open(method, rawURL string, opts XHROpenOptions) error {
	return h.raw.Open(method, h.net.RewriteURL(rawURL), opts)
}

// Window is the handle returned when a new window is opened.
type Window any

// WindowOpener is window.open.
type WindowOpener interface {
	Open(rawURL, target, features string) (Window, error)
}

type openerHook struct {
	raw WindowOpener
	net *Network
}

// WrapWindowOpener rewrites the URL of newly opened windows.
func WrapWindowOpener(w WindowOpener, n *Network) WindowOpener {
	return openerHook{raw: w, net: n}
}

func (h openerHook) Open(rawURL, target, features string) (Window, error) {
	return h.raw.Open(h.net.RewriteURL(rawURL), target, features)
}

// History is the session history API. An empty URL keeps the current entry's URL.
type History interface {
	PushState(state any, title, rawURL string) error
	ReplaceState(state any, title, rawURL string) error
}

type historyHook struct {
	raw History
	net *Network
}

// WrapHistory rewrites the URL of pushed and replaced entries.
func WrapHistory(h History, n *Network) History { return historyHook{raw: h, net: n} }

func (h historyHook) url(raw string) string {
	if raw == "" {
		return raw
	}
	return h.net.RewriteURL(raw)
}

func (h historyHook) PushState(state any, title, rawURL string) error {
	return h.raw.PushState(state, title, h.url(rawURL))
}

func (h historyHook) ReplaceState(state any, title, rawURL string) error {
	return h.raw.ReplaceState(state, title, h.url(rawURL))
}

// Constructor builds an object of type T from a script or stream URL.
type Constructor[T, O any] interface {
	New(rawURL string, opts O) (T, error)
}

// ConstructorFunc adapts a function to Constructor.
type ConstructorFunc[T, O any] func(rawURL string, opts O) (T, error)

// New calls f.
func (f ConstructorFunc[T, O]) New(rawURL string, opts O) (T, error) { return f(rawURL, opts) }

// WrapConstructor rewrites the URL handed to c. The constructed value is
// returned exactly as c produced it.
func WrapConstructor[T, O any](c Constructor[T, O], n *Network) Constructor[T, O] {
	return ConstructorFunc[T, O](func(rawURL string, opts O) (T, error) {
		return c.New(n.RewriteURL(rawURL), opts)
	})
}

// Worker is a dedicated or shared worker.
type Worker interface {
	PostMessage(msg any) error
	Terminate()
}

// WorkerOptions are the options of the Worker and SharedWorker constructors.
type WorkerOptions struct {
	Type        string
	Name        string
	Credentials string
}

// EventSource is a server-sent event stream.
type EventSource interface {
	Close()
}

// EventSourceOptions are the options of the EventSource constructor.
type EventSourceOptions struct {
	WithCredentials bool
}
