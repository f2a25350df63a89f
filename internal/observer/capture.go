package observer

import (
	"golang.org/x/net/html"

	"pagehook/internal/dom"
)

// Location is the page's navigable location.
type Location interface {
	Href() string
	Assign(rawURL string) error
}

// onClick sends clicks on proxyable links straight to the rewritten URL.
func (e *Engine) onClick(ev *dom.Event) {
	a := e.doc.Closest(ev.Target, "a")
	if a == nil {
		return
	}
	href, ok := e.doc.GetAttribute(a, "href")
	if !ok || href == "" || !e.rw.ShouldProxy(href) {
		return
	}
	ev.PreventDefault()
	if err := e.loc.Assign(e.rw.Rewrite(href)); err != nil {
		e.logger.Printf("observer: navigate %q: %v", href, err)
	}
}

// onSubmit points the submitted form's action at the proxy. A form without
// an action submits to the current page, as browsers do.
func (e *Engine) onSubmit(ev *dom.Event) {
	form := ev.Target
	if form == nil || form.Type != html.ElementNode || form.Data != "form" {
		return
	}
	action, _ := e.doc.GetAttribute(form, "action")
	var next string
	switch {
	case action == "":
		next = e.rw.Rewrite(e.loc.Href())
	case e.rw.ShouldProxy(action):
		next = e.rw.Rewrite(action)
	default:
		return
	}
	if next == action {
		return
	}
	if err := e.doc.SetAttribute(e.origin, form, "action", next); err != nil {
		e.logger.Printf("observer: form action: %v", err)
	}
}
