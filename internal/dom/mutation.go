package dom

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"
)

// Origin identifies the party responsible for a DOM write. Every raw write
// takes one and every mutation record carries it, so an observer can tell its
// own writes apart from everyone else's without shared global state.
type Origin uint64

// External marks writes made by the page itself.
const External Origin = 0

var originSeq atomic.Uint64

// NewOrigin returns an Origin distinct from External and from every other
// Origin handed out in this process.
func NewOrigin() Origin { return Origin(originSeq.Add(1)) }

// MutationType distinguishes structural from attribute records.
type MutationType int

const (
	ChildList MutationType = iota
	Attributes
)

func (t MutationType) String() string {
	if t == Attributes {
		return "attributes"
	}
	return "childList"
}

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Type          MutationType
	Target        *html.Node
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
	AttributeName string
	OldValue      string
	Origin        Origin
}

// ObserveOptions selects which records an Observer receives.
type ObserveOptions struct {
	ChildList       bool
	Attributes      bool
	Subtree         bool
	AttributeFilter []string
}

// Observer receives batches of mutation records for one observed subtree.
type Observer struct {
	doc     *Document
	target  *html.Node
	opts    ObserveOptions
	filter  map[string]bool
	fn      func([]MutationRecord)
	records []MutationRecord
	active  bool
}

// Observe registers fn for mutations under target. Records queue up until the
// next delivery.
func (d *Document) Observe(target *html.Node, opts ObserveOptions, fn func([]MutationRecord)) *Observer {
	o := &Observer{doc: d, target: target, opts: opts, fn: fn, active: true}
	if len(opts.AttributeFilter) > 0 {
		o.filter = make(map[string]bool, len(opts.AttributeFilter))
		for _, name := range opts.AttributeFilter {
			o.filter[strings.ToLower(name)] = true
		}
	}
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
	return o
}

// Disconnect stops delivery and drops queued records.
func (o *Observer) Disconnect() {
	d := o.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	o.active = false
	o.records = nil
	for i, cur := range d.observers {
		if cur == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			break
		}
	}
}

// TakeRecords empties the observer's queue without invoking its callback.
func (o *Observer) TakeRecords() []MutationRecord {
	o.doc.mu.Lock()
	defer o.doc.mu.Unlock()
	recs := o.records
	o.records = nil
	return recs
}

func (o *Observer) wants(rec MutationRecord) bool {
	switch rec.Type {
	case ChildList:
		if !o.opts.ChildList {
			return false
		}
	case Attributes:
		if !o.opts.Attributes {
			return false
		}
		if o.filter != nil && !o.filter[rec.AttributeName] {
			return false
		}
	}
	if rec.Target == o.target {
		return true
	}
	return o.opts.Subtree && isAncestor(o.target, rec.Target)
}

func isAncestor(ancestor, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// queue must be called with d.mu held.
func (d *Document) queue(rec MutationRecord) {
	queued := false
	for _, o := range d.observers {
		if o.active && o.wants(rec) {
			o.records = append(o.records, rec)
			queued = true
		}
	}
	if queued {
		select {
		case d.notify <- struct{}{}:
		default:
		}
	}
}

// DeliverMutations hands every observer its queued records, one callback per
// observer, and reports how many records were delivered. Callbacks run
// without the document lock held, so they may write to the document.
func (d *Document) DeliverMutations() int {
	type batch struct {
		fn   func([]MutationRecord)
		recs []MutationRecord
	}
	d.mu.Lock()
	var batches []batch
	for _, o := range d.observers {
		if len(o.records) == 0 {
			continue
		}
		batches = append(batches, batch{fn: o.fn, recs: o.records})
		o.records = nil
	}
	d.mu.Unlock()
	n := 0
	for _, b := range batches {
		n += len(b.recs)
		b.fn(b.recs)
	}
	return n
}

// Run delivers mutation records as they are queued until ctx is done.
func (d *Document) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.notify:
			for d.DeliverMutations() > 0 {
			}
		}
	}
}
