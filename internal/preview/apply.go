package preview

import (
	"fmt"
	"log"

	"golang.org/x/net/html"

	"pagehook/internal/dom"
	"pagehook/internal/hook"
	"pagehook/internal/rewrite"
)

const maxSamples = 25

// Change is one attribute rewritten by the hooks.
type Change struct {
	Tag    string `json:"tag"`
	Attr   string `json:"attr"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Report describes what the hooks did to a page.
type Report struct {
	URL       string         `json:"url"`
	FinalURL  string         `json:"finalUrl,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	Status    int            `json:"status,omitempty"`
	Config    rewrite.Config `json:"config"`
	Elements  int            `json:"elements"`
	Total     int            `json:"total"`
	Rewritten map[string]int `json:"rewritten"`
	Samples   []Change       `json:"samples,omitempty"`
}

// Result is a rewritten page and its report.
type Result struct {
	HTML   string
	Report *Report
}

// pageLocation is a location that cannot navigate.
type pageLocation string

func (l pageLocation) Href() string        { return string(l) }
func (l pageLocation) Assign(string) error { return nil }

// Apply installs the hooks on doc as if the page were open at location, runs
// the initial sweep and reports every attribute the engine rewrote. The
// caller fills in the report's URL fields. doc must not be shared with other
// writers while Apply runs.
func Apply(doc *dom.Document, cfg rewrite.Config, location string, logger *log.Logger) (*Report, error) {
	rep := &Report{Rewritten: map[string]int{}}
	elements := map[*html.Node]bool{}
	obs := doc.Observe(doc.DocumentElement(), dom.ObserveOptions{Attributes: true, Subtree: true}, func(recs []dom.MutationRecord) {
		for _, rec := range recs {
			if rec.Origin == dom.External || rec.Type != dom.Attributes {
				continue
			}
			after, _ := doc.GetAttribute(rec.Target, rec.AttributeName)
			rep.Total++
			rep.Rewritten[rec.AttributeName]++
			elements[rec.Target] = true
			if len(rep.Samples) < maxSamples {
				rep.Samples = append(rep.Samples, Change{
					Tag:    rec.Target.Data,
					Attr:   rec.AttributeName,
					Before: rec.OldValue,
					After:  after,
				})
			}
		}
	})
	defer obs.Disconnect()

	opts := []hook.Option{hook.WithManualDelivery()}
	if logger != nil {
		opts = append(opts, hook.WithLogger(logger))
	}
	rt, err := hook.Install(hook.Env{Document: doc, Location: pageLocation(location)}, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("install hooks: %w", err)
	}
	defer rt.Close()
	if doc.ReadyState() == dom.Loading {
		doc.SetReadyState(dom.Interactive)
	}
	for doc.DeliverMutations() > 0 {
	}
	rep.Config = rt.Rewriter.Config()
	rep.Elements = len(elements)
	return rep, nil
}
