// Package hook wraps every page capability that can produce or change a URL
// so that the URL is routed through the proxy, and wires those wrappers and
// the mutation engine together for one page.
package hook

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"

	"pagehook/internal/dom"
	"pagehook/internal/observer"
	"pagehook/internal/rewrite"
)

// ErrNoDocument is returned by Install when Env has no document.
var ErrNoDocument = errors.New("hook: env has no document")

// Env holds the raw page capabilities. Nil capabilities are skipped.
type Env struct {
	Document     *dom.Document
	Location     observer.Location
	Transport    http.RoundTripper
	XHR          XHR
	Window       WindowOpener
	History      History
	Worker       Constructor[Worker, WorkerOptions]
	SharedWorker Constructor[Worker, WorkerOptions]
	EventSource  Constructor[EventSource, EventSourceOptions]
}

type settings struct {
	logger *log.Logger
	engine []observer.Option
	manual bool
}

// Option configures Install.
type Option func(*settings)

// WithLogger sets the logger for the runtime and its engine.
func WithLogger(l *log.Logger) Option { return func(s *settings) { s.logger = l } }

// WithEngineOptions passes options through to the mutation engine.
func WithEngineOptions(opts ...observer.Option) Option {
	return func(s *settings) { s.engine = append(s.engine, opts...) }
}

// WithManualDelivery leaves mutation delivery to the caller, who must call
// Document.DeliverMutations. By default the runtime delivers records itself.
func WithManualDelivery() Option { return func(s *settings) { s.manual = true } }

// Runtime is an installed set of hooks for one page. Page code reaches the
// wrapped capabilities through it instead of the raw ones in Env.
type Runtime struct {
	Rewriter   *rewrite.Rewriter
	Network    *Network
	Engine     *observer.Engine
	Attributes *Attributes
	Properties *Properties
	Markup     *MarkupWriter

	Transport    http.RoundTripper
	XHR          XHR
	Window       WindowOpener
	History      History
	Worker       Constructor[Worker, WorkerOptions]
	SharedWorker Constructor[Worker, WorkerOptions]
	EventSource  Constructor[EventSource, EventSourceOptions]

	cancel context.CancelFunc
	done   chan struct{}
}

// Install wraps the capabilities in env and starts the mutation engine. When
// cfg has no page host it is taken from env.Location.
func Install(env Env, cfg rewrite.Config, opts ...Option) (*Runtime, error) {
	if env.Document == nil {
		return nil, ErrNoDocument
	}
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}

	pageURL := ""
	if env.Location != nil {
		pageURL = env.Location.Href()
	}
	if cfg.PageHost == "" && pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			cfg.PageHost = u.Host
		}
	}
	if pageURL == "" && cfg.PageHost != "" {
		pageURL = "http://" + cfg.PageHost + "/"
	}

	rw := rewrite.New(cfg)
	nw := NewNetwork(rw, pageURL)
	rt := &Runtime{
		Rewriter:   rw,
		Network:    nw,
		Attributes: NewAttributes(env.Document, rw),
		Properties: NewProperties(env.Document, rw),
		Markup:     NewMarkupWriter(env.Document, rw),
	}
	if env.Transport != nil {
		rt.Transport = &Transport{Base: env.Transport, Network: nw}
	}
	if env.XHR != nil {
		rt.XHR = WrapXHR(env.XHR, nw)
	}
	if env.Window != nil {
		rt.Window = WrapWindowOpener(env.Window, nw)
	}
	if env.History != nil {
		rt.History = WrapHistory(env.History, nw)
	}
	if env.Worker != nil {
		rt.Worker = WrapConstructor(env.Worker, nw)
	}
	if env.SharedWorker != nil {
		rt.SharedWorker = WrapConstructor(env.SharedWorker, nw)
	}
	if env.EventSource != nil {
		rt.EventSource = WrapConstructor(env.EventSource, nw)
	}

	engineOpts := []observer.Option{observer.WithLogger(s.logger)}
	if env.Location != nil {
		engineOpts = append(engineOpts, observer.WithLocation(env.Location))
	}
	rt.Engine = observer.New(env.Document, rw, append(engineOpts, s.engine...)...)
	rt.Engine.Start()

	if !s.manual {
		ctx, cancel := context.WithCancel(context.Background())
		rt.cancel = cancel
		rt.done = make(chan struct{})
		go func() {
			defer close(rt.done)
			env.Document.Run(ctx)
		}()
	}

	s.logger.Println("client-side hooks initialized")
	return rt, nil
}

// StyleSheet wraps a stylesheet so inserted rules are rewritten.
func (rt *Runtime) StyleSheet(sheet dom.RuleInserter) *RuleInserter {
	return NewRuleInserter(sheet, rt.Rewriter)
}

// Close stops the engine and, unless delivery is manual, the delivery loop.
func (rt *Runtime) Close() error {
	rt.Engine.Stop()
	if rt.cancel != nil {
		rt.cancel()
		<-rt.done
	}
	return nil
}
