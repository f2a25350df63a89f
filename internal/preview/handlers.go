package preview

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pagehook/internal/dom"
	"pagehook/internal/rewrite"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.cfg.IndexHTML)))
	io.WriteString(w, s.cfg.IndexHTML)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	res, ok := s.previewFromQuery(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.HTML)))
	w.Header().Set("X-Pagehook-Rewritten", strconv.Itoa(res.Report.Total))
	io.WriteString(w, res.HTML)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	res, ok := s.previewFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, res.Report)
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	target := normalizeTarget(r.URL.Query().Get("url"))
	if target == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	u, err := checkTarget(target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rw := rewrite.New(s.rewriteConfig(r, u))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, rw.Rewrite(target)+"\n")
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/decode/")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	decoded, err := rewrite.Decode(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, decoded+"\n")
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

// previewFromQuery resolves the target named by the query, loads it and
// applies the hooks. On failure it writes the error response itself.
func (s *Server) previewFromQuery(w http.ResponseWriter, r *http.Request) (*Result, bool) {
	_ = r.ParseForm()
	base := normalizeTarget(r.FormValue("url"))
	if base == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return nil, false
	}
	target := buildURL(base, r.FormValue("action"), r.FormValue("get"))
	u, err := checkTarget(target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	site := s.sites.Find(target)
	mode := ModeStatic
	if site != nil && site.Mode == ModeJS {
		mode = ModeJS
	}
	if v := r.FormValue("js"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil && on {
			mode = ModeJS
		} else if err == nil {
			mode = ModeStatic
		}
	}
	s.logger.Printf("IN %s %s from %s -> target=%s mode=%s", r.Method, r.URL.String(), r.RemoteAddr, target, mode)

	hdr := s.headersFromQuery(r)
	if site != nil {
		for k, v := range site.Headers {
			hdr.Set(k, v)
		}
	}
	visitor := deriveClientKey(r)
	key := cacheKey(target, mode, r.Host, visitor, hdr)
	if res, ok := s.cache.Get(key); ok {
		w.Header().Set("X-Pagehook-Cache", "hit")
		return res, true
	}
	w.Header().Set("X-Pagehook-Cache", "miss")

	res, err := s.buildPreview(r, u, mode, site, hdr, visitor)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrBlockedTarget) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return nil, false
	}
	s.cache.Store(key, res)
	return res, true
}

func (s *Server) buildPreview(r *http.Request, target *url.URL, mode string, site *SiteConfig, hdr http.Header, visitor string) (*Result, error) {
	loader := s.static
	if mode == ModeJS {
		js, err := s.jsLoader()
		if err != nil {
			return nil, err
		}
		loader = js
	}
	page, err := loader.Load(r.Context(), target.String(), hdr, s.cookieJars.Get(visitor), site)
	if err != nil {
		return nil, err
	}
	// redirects may leave the allowed schemes
	final, err := checkTarget(page.URL)
	if err != nil {
		return nil, err
	}

	doc, err := dom.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, err
	}
	cfg := s.rewriteConfig(r, final)
	location := serverBase(r) + rewrite.New(cfg).Rewrite(final.String())
	rep, err := Apply(doc, cfg, location, s.logger)
	if err != nil {
		return nil, err
	}
	rep.URL = target.String()
	rep.FinalURL = final.String()
	rep.Mode = mode
	rep.Status = page.Status
	return &Result{HTML: doc.String(), Report: rep}, nil
}

// rewriteConfig is the configuration a page loaded from target sees when
// served to this visitor.
func (s *Server) rewriteConfig(r *http.Request, target *url.URL) rewrite.Config {
	return rewrite.Config{
		Prefix:       s.cfg.Prefix,
		BaseURL:      target.String(),
		TargetOrigin: target.Scheme + "://" + target.Host,
		PageHost:     r.Host,
	}
}

func (s *Server) headersFromQuery(r *http.Request) http.Header {
	hdr := http.Header{}
	q := r.URL.Query()
	if ua := q.Get("ua"); ua != "" {
		hdr.Set("User-Agent", ua)
	}
	if lang := firstNonEmpty(q.Get("lang"), r.Header.Get("Accept-Language")); lang != "" {
		hdr.Set("Accept-Language", lang)
	}
	return hdr
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
