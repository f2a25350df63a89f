// Package observer keeps a document's URLs rewritten as it changes. It sweeps
// the document once, then rewrites nodes reported by mutation records, inline
// for small bursts and on the next frame for large ones.
package observer

import (
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"pagehook/internal/dom"
	"pagehook/internal/rewrite"
)

// DefaultBatchThreshold is the largest burst rewritten inline.
const DefaultBatchThreshold = 50

// SelfMarkerAttr flags the proxy's own injected nodes, which are never rewritten.
const SelfMarkerAttr = "data-proxy"

var sweepSelector = func() string {
	names := append(append([]string(nil), rewrite.URLAttributes...), rewrite.StyleAttribute)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "[" + n + "]"
	}
	return strings.Join(parts, ", ")
}()

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the frame scheduler used for batched flushes.
func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithThreshold sets the largest burst processed inline.
func WithThreshold(n int) Option { return func(e *Engine) { e.threshold = n } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithLocation enables click and submit capture against loc.
func WithLocation(loc Location) Option { return func(e *Engine) { e.loc = loc } }

// Engine is the mutation-tracking engine for one document.
type Engine struct {
	doc       *dom.Document
	rw        *rewrite.Rewriter
	origin    dom.Origin
	sched     Scheduler
	threshold int
	logger    *log.Logger
	loc       Location

	state atomic.Int32
	swept atomic.Bool

	// work serialises rewriting passes.
	work sync.Mutex

	mu        sync.Mutex
	pending   []*html.Node
	scheduled bool
	obs       *dom.Observer
	listeners []dom.ListenerHandle
}

// New returns an engine for doc. Nothing happens until Start.
func New(doc *dom.Document, rw *rewrite.Rewriter, opts ...Option) *Engine {
	e := &Engine{
		doc:       doc,
		rw:        rw,
		origin:    dom.NewOrigin(),
		sched:     FrameTicker{},
		threshold: DefaultBatchThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	return e
}

// Origin is the write origin the engine stamps on its own DOM writes.
func (e *Engine) Origin() dom.Origin { return e.origin }

// State reports the current processing state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Swept reports whether the initial sweep has run.
func (e *Engine) Swept() bool { return e.swept.Load() }

// Pending reports the number of queued nodes awaiting a flush.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Start subscribes to mutations, installs capture listeners and runs the
// initial sweep, deferring it to DOMContentLoaded while the document loads.
func (e *Engine) Start() {
	filter := append(append([]string(nil), rewrite.URLAttributes...), rewrite.StyleAttribute)
	obs := e.doc.Observe(e.doc.DocumentElement(), dom.ObserveOptions{
		ChildList:       true,
		Attributes:      true,
		Subtree:         true,
		AttributeFilter: filter,
	}, e.handle)

	var handles []dom.ListenerHandle
	if e.loc != nil {
		handles = append(handles,
			e.doc.AddEventListener(dom.EventClick, true, e.onClick),
			e.doc.AddEventListener(dom.EventSubmit, true, e.onSubmit),
		)
	}
	if e.doc.ReadyState() == dom.Loading {
		handles = append(handles, e.doc.AddEventListener(dom.EventContentLoaded, false, func(*dom.Event) {
			e.Sweep()
		}))
	}

	e.mu.Lock()
	e.obs = obs
	e.listeners = handles
	e.mu.Unlock()

	if e.doc.ReadyState() != dom.Loading {
		e.Sweep()
	}
}

// Stop disconnects the engine from the document. A flush already scheduled
// still runs.
func (e *Engine) Stop() {
	e.mu.Lock()
	obs, handles := e.obs, e.listeners
	e.obs, e.listeners = nil, nil
	e.mu.Unlock()
	if obs != nil {
		obs.Disconnect()
	}
	for _, h := range handles {
		h.Remove()
	}
}

// Sweep rewrites every element that carries a URL-bearing attribute and
// returns how many elements changed. Only the first call does any work.
func (e *Engine) Sweep() int {
	if !e.swept.CompareAndSwap(false, true) {
		return 0
	}
	nodes, err := e.doc.QuerySelectorAll(sweepSelector)
	if err != nil {
		e.logger.Printf("observer: initial sweep: %v", err)
		return 0
	}
	e.work.Lock()
	defer e.work.Unlock()
	changed := 0
	for _, n := range nodes {
		if e.rewriteSafe(n) {
			changed++
		}
	}
	return changed
}

func (e *Engine) handle(records []dom.MutationRecord) {
	var candidates []*html.Node
	for _, rec := range records {
		if rec.Origin == e.origin {
			continue
		}
		switch rec.Type {
		case dom.ChildList:
			for _, n := range rec.AddedNodes {
				if n.Type != html.ElementNode {
					continue
				}
				candidates = append(candidates, n)
				candidates = append(candidates, e.doc.Descendants(n)...)
			}
		case dom.Attributes:
			if rec.Target != nil && rec.Target.Type == html.ElementNode {
				candidates = append(candidates, rec.Target)
			}
		}
	}
	if len(candidates) == 0 {
		return
	}
	if len(candidates) <= e.threshold {
		e.processSync(candidates)
		return
	}
	e.enqueue(candidates)
}

func (e *Engine) processSync(nodes []*html.Node) {
	e.work.Lock()
	defer e.work.Unlock()
	e.state.Store(int32(ProcessingSync))
	for _, n := range nodes {
		e.rewriteSafe(n)
	}
	e.settle()
}

func (e *Engine) enqueue(nodes []*html.Node) {
	e.mu.Lock()
	e.pending = append(e.pending, nodes...)
	schedule := !e.scheduled
	e.scheduled = true
	e.mu.Unlock()
	e.state.CompareAndSwap(int32(Idle), int32(Batching))
	if schedule {
		e.sched.RequestFrame(e.flush)
	}
}

func (e *Engine) flush() {
	e.mu.Lock()
	e.scheduled = false
	nodes := e.pending
	e.pending = nil
	e.mu.Unlock()

	e.work.Lock()
	defer e.work.Unlock()
	if len(nodes) > 0 {
		e.state.Store(int32(ProcessingBatched))
		for _, n := range nodes {
			e.rewriteSafe(n)
		}
	}
	e.settle()
}

// settle picks the resting state after a pass; callers hold e.work.
func (e *Engine) settle() {
	e.mu.Lock()
	batching := e.scheduled
	e.mu.Unlock()
	if batching {
		e.state.Store(int32(Batching))
	} else {
		e.state.Store(int32(Idle))
	}
}

func (e *Engine) rewriteSafe(n *html.Node) (changed bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("observer: rewrite <%s> failed: %v", n.Data, r)
			changed = false
		}
	}()
	return e.RewriteNode(n)
}

// RewriteNode rewrites the URL-bearing attributes of n in place, writing
// only values that change. It reports whether anything was written.
func (e *Engine) RewriteNode(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if v, ok := e.doc.GetAttribute(n, SelfMarkerAttr); ok && v == "true" {
		return false
	}
	changed := false
	for _, name := range rewrite.URLAttributes {
		if e.rewriteAttr(n, name) {
			changed = true
		}
	}
	if v, ok := e.doc.GetAttribute(n, rewrite.StyleAttribute); ok && strings.Contains(v, "url(") {
		if e.rewriteAttr(n, rewrite.StyleAttribute) {
			changed = true
		}
	}
	return changed
}

func (e *Engine) rewriteAttr(n *html.Node, name string) bool {
	v, ok := e.doc.GetAttribute(n, name)
	if !ok {
		return false
	}
	nv := e.rw.RewriteAttribute(name, v)
	if nv == v {
		return false
	}
	if err := e.doc.SetAttribute(e.origin, n, name, nv); err != nil {
		e.logger.Printf("observer: set %s: %v", name, err)
		return false
	}
	return true
}
