package dom

import "golang.org/x/net/html"

// Event types dispatched by the document.
const (
	EventClick         = "click"
	EventSubmit        = "submit"
	EventContentLoaded = "DOMContentLoaded"
)

// Event is a dispatched DOM event.
type Event struct {
	Type   string
	Target *html.Node

	defaultPrevented bool
}

// PreventDefault cancels the event's default action.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

type listener struct {
	id      int
	capture bool
	fn      func(*Event)
}

// ListenerHandle removes a listener registered with AddEventListener.
type ListenerHandle struct {
	doc *Document
	typ string
	id  int
}

// Remove unregisters the listener. It is safe to call more than once.
func (h ListenerHandle) Remove() {
	if h.doc == nil {
		return
	}
	d := h.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	ls := d.listeners[h.typ]
	for i, l := range ls {
		if l.id == h.id {
			d.listeners[h.typ] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// AddEventListener registers fn on the document. Capturing listeners run
// before non-capturing ones.
func (d *Document) AddEventListener(typ string, capture bool, fn func(*Event)) ListenerHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextListener++
	id := d.nextListener
	d.listeners[typ] = append(d.listeners[typ], listener{id: id, capture: capture, fn: fn})
	return ListenerHandle{doc: d, typ: typ, id: id}
}

// DispatchEvent runs the document's listeners for ev and reports whether the
// default action should proceed.
func (d *Document) DispatchEvent(ev *Event) bool {
	d.mu.Lock()
	ls := append([]listener(nil), d.listeners[ev.Type]...)
	d.mu.Unlock()
	for _, l := range ls {
		if l.capture {
			l.fn(ev)
		}
	}
	for _, l := range ls {
		if !l.capture {
			l.fn(ev)
		}
	}
	return !ev.defaultPrevented
}
