// Package preview serves pages with the client-side hooks applied. A target
// page is fetched (or rendered in headless Chrome), every URL the hooks would
// touch is rewritten, and the result is returned as HTML or as a report.
// Nothing is proxied: rewritten links point at whatever serves the prefix.
package preview

import (
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"pagehook/internal/rewrite"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html><body>
<h1>pagehook preview</h1>
<form action="/preview" method="get">
<h3>Preview a page with hooks applied</h3>
URL: <input name="url" size="60"><br>
Action: <input name="action"><br>
Get: <input name="get"><br>
JS: <input type="checkbox" name="js" value="1"><br>
<button type="submit">Preview</button>
</form>
<form action="/inspect" method="get">
<h3>Inspect rewrites</h3>
URL: <input name="url" size="60"><br>
<button type="submit">Inspect</button>
</form>
</body></html>`

const (
	defaultSitesDir = "config/sites"
	defaultCacheTTL = 5 * time.Minute
)

// Config describes server wiring and runtime behaviour.
type Config struct {
	IndexHTML string
	SitesDir  string
	// Prefix is the proxy prefix rewritten URLs are placed under.
	Prefix   string
	CacheTTL time.Duration
	// HTTPClient performs static fetches. A client per visitor is derived
	// from it so each gets its own cookie jar.
	HTTPClient *http.Client
	Logger     *log.Logger
	Clock      func() time.Time
}

// DefaultConfig populates configuration from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		IndexHTML: defaultIndexHTML,
		Logger:    log.Default(),
		Clock:     time.Now,
		SitesDir:  strings.TrimSpace(os.Getenv("PAGEHOOK_SITES_DIR")),
		Prefix:    rewrite.ConfigFromEnv().Prefix,
		CacheTTL:  defaultCacheTTL,
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	if raw := strings.TrimSpace(os.Getenv("PAGEHOOK_CACHE_TTL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
			cfg.CacheTTL = d
		}
	}
	return cfg
}

// Server exposes the preview handlers.
type Server struct {
	cfg        Config
	mux        *http.ServeMux
	handler    http.Handler
	logger     *log.Logger
	cookieJars *cookieJarStore
	cache      *pageCache
	sites      *siteConfigStore
	static     pageLoader
	clock      func() time.Time

	jsOnce sync.Once
	js     pageLoader
	jsErr  error
}

// New wires a preview server with the provided configuration.
func New(cfg Config) *Server {
	if cfg.IndexHTML == "" {
		cfg.IndexHTML = defaultIndexHTML
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Prefix == "" {
		cfg.Prefix = rewrite.DefaultPrefix
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     cfg.Logger,
		cookieJars: newCookieJarStore(cfg.Clock, defaultJarIdle),
		cache:      newPageCache(cfg.Clock, cfg.CacheTTL),
		sites:      newSiteConfigStore(cfg.SitesDir),
		static:     &staticLoader{client: cfg.HTTPClient},
		clock:      cfg.Clock,
	}
	s.registerRoutes()
	s.handler = withLogging(s.logger, s.mux)
	return s
}

// Handler exposes the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler { return s }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases the headless browser, if one was started.
func (s *Server) Close() {
	if c, ok := s.js.(interface{ Close() }); ok {
		c.Close()
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/preview", s.handlePreview)
	s.mux.HandleFunc("/inspect", s.handleInspect)
	s.mux.HandleFunc("/encode", s.handleEncode)
	s.mux.HandleFunc("/decode/", s.handleDecode)
	s.mux.HandleFunc("/ping", s.handlePing)
}

// jsLoader starts the headless browser on first use.
func (s *Server) jsLoader() (pageLoader, error) {
	s.jsOnce.Do(func() {
		if s.js != nil {
			return
		}
		s.js, s.jsErr = newJSRenderer(s.logger)
	})
	return s.js, s.jsErr
}
