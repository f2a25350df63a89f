// Package dom is a small document model over golang.org/x/net/html nodes. It
// provides the raw primitives a page uses to change URLs (attribute and
// property writes, markup insertion, stylesheet rules), queues mutation
// records for observers, and dispatches capturing events.
//
// All access to the node tree goes through Document methods, which serialise
// on an internal mutex. Mutation callbacks and event listeners always run
// without that mutex held.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrNotElement is returned when an element operation targets another node type.
	ErrNotElement = errors.New("node is not an element")
	// ErrUnknownProperty is returned for properties without an attribute reflection.
	ErrUnknownProperty = errors.New("unknown property")
)

// ReadyState mirrors document.readyState.
type ReadyState int

const (
	Loading ReadyState = iota
	Interactive
	Complete
)

func (s ReadyState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Interactive:
		return "interactive"
	default:
		return "complete"
	}
}

// AttributeSetter is the generic attribute-setting primitive.
type AttributeSetter interface {
	SetAttribute(origin Origin, n *html.Node, name, value string) error
}

// PropertySetter reads and writes reflected element properties.
type PropertySetter interface {
	Property(n *html.Node, name string) (string, error)
	SetProperty(origin Origin, n *html.Node, name, value string) error
}

// MarkupWriter is the document.write family.
type MarkupWriter interface {
	Write(origin Origin, markup ...string) error
	Writeln(origin Origin, markup ...string) error
}

// reflected maps property names to the content attribute they reflect.
var reflected = map[string]string{
	"href":       "href",
	"src":        "src",
	"action":     "action",
	"formAction": "formaction",
	"poster":     "poster",
	"data":       "data",
	"srcset":     "srcset",
	"id":         "id",
	"className":  "class",
}

// Document owns a parsed node tree.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	state     ReadyState
	observers []*Observer
	listeners map[string][]listener
	notify    chan struct{}

	nextListener int
}

// NewDocument wraps an existing tree. The document starts in the Loading state.
func NewDocument(root *html.Node) *Document {
	return &Document{
		root:      root,
		listeners: make(map[string][]listener),
		notify:    make(chan struct{}, 1),
	}
}

// Parse reads a complete HTML document. The result is Interactive.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	d := NewDocument(root)
	d.state = Interactive
	return d, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// DocumentElement returns the <html> element, or the root when absent.
func (d *Document) DocumentElement() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := findAtom(d.root, atom.Html); n != nil {
		return n
	}
	return d.root
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return findAtom(d.root, atom.Body)
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}

// ReadyState reports the current loading state.
func (d *Document) ReadyState() ReadyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetReadyState advances the loading state. Leaving Loading dispatches
// DOMContentLoaded.
func (d *Document) SetReadyState(s ReadyState) {
	d.mu.Lock()
	prev := d.state
	d.state = s
	d.mu.Unlock()
	if prev == Loading && s != Loading {
		d.DispatchEvent(&Event{Type: EventContentLoaded, Target: d.root})
	}
}

// GetAttribute returns the value of the named attribute.
func (d *Document) GetAttribute(n *html.Node, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return getAttr(n, name)
}

// HasAttribute reports whether the named attribute is present.
func (d *Document) HasAttribute(n *html.Node, name string) bool {
	_, ok := d.GetAttribute(n, name)
	return ok
}

func getAttr(n *html.Node, name string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute is the raw attribute primitive. Names are matched and stored
// lower-cased.
func (d *Document) SetAttribute(origin Origin, n *html.Node, name, value string) error {
	if n == nil || n.Type != html.ElementNode {
		return ErrNotElement
	}
	name = strings.ToLower(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	old, _ := getAttr(n, name)
	set := false
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = value
			set = true
			break
		}
	}
	if !set {
		n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	}
	d.queue(MutationRecord{Type: Attributes, Target: n, AttributeName: name, OldValue: old, Origin: origin})
	return nil
}

// RemoveAttribute deletes the named attribute if present.
func (d *Document) RemoveAttribute(origin Origin, n *html.Node, name string) error {
	if n == nil || n.Type != html.ElementNode {
		return ErrNotElement
	}
	name = strings.ToLower(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.queue(MutationRecord{Type: Attributes, Target: n, AttributeName: name, OldValue: a.Val, Origin: origin})
			return nil
		}
	}
	return nil
}

// Property reads a reflected property.
func (d *Document) Property(n *html.Node, name string) (string, error) {
	attr, ok := reflected[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	v, _ := d.GetAttribute(n, attr)
	return v, nil
}

// SetProperty writes a reflected property through its content attribute.
func (d *Document) SetProperty(origin Origin, n *html.Node, name, value string) error {
	attr, ok := reflected[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return d.SetAttribute(origin, n, attr, value)
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// AppendChild attaches child as the last child of parent.
func (d *Document) AppendChild(origin Origin, parent, child *html.Node) error {
	if parent == nil || child == nil {
		return ErrNotElement
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if child.Parent != nil {
		old := child.Parent
		old.RemoveChild(child)
		d.queue(MutationRecord{Type: ChildList, Target: old, RemovedNodes: []*html.Node{child}, Origin: origin})
	}
	parent.AppendChild(child)
	d.queue(MutationRecord{Type: ChildList, Target: parent, AddedNodes: []*html.Node{child}, Origin: origin})
	return nil
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(origin Origin, parent, child *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if child == nil || child.Parent != parent {
		return fmt.Errorf("remove child: node is not a child of %v", parent)
	}
	parent.RemoveChild(child)
	d.queue(MutationRecord{Type: ChildList, Target: parent, RemovedNodes: []*html.Node{child}, Origin: origin})
	return nil
}

// SetInnerHTML replaces n's children with the parsed markup.
func (d *Document) SetInnerHTML(origin Origin, n *html.Node, markup string) error {
	if n == nil || n.Type != html.ElementNode {
		return ErrNotElement
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	d.queue(MutationRecord{Type: ChildList, Target: n, AddedNodes: nodes, RemovedNodes: removed, Origin: origin})
	return nil
}

// Write appends the parsed markup to the body, like document.write after
// parsing has finished.
func (d *Document) Write(origin Origin, markup ...string) error {
	body := d.Body()
	if body == nil {
		body = d.DocumentElement()
	}
	if body.Type != html.ElementNode {
		return ErrNotElement
	}
	nodes, err := html.ParseFragment(strings.NewReader(strings.Join(markup, "")), body)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range nodes {
		body.AppendChild(c)
	}
	if len(nodes) > 0 {
		d.queue(MutationRecord{Type: ChildList, Target: body, AddedNodes: nodes, Origin: origin})
	}
	return nil
}

// Writeln is Write followed by a newline.
func (d *Document) Writeln(origin Origin, markup ...string) error {
	return d.Write(origin, append(markup, "\n")...)
}

// Closest walks up from n, including n, to the nearest element with the given tag.
func (d *Document) Closest(n *html.Node, tag string) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			return cur
		}
	}
	return nil
}

// Descendants returns the element descendants of n in document order,
// excluding n itself.
func (d *Document) Descendants(n *html.Node) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Render serialises the document.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String returns the serialised document.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}
