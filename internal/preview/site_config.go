package preview

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Render modes.
const (
	ModeStatic = "static"
	ModeJS     = "js"
)

// SiteConfig tunes how pages of one host are loaded. It is read from
// <SitesDir>/<host>.yaml, trying parent domains in turn.
type SiteConfig struct {
	Mode    string            `yaml:"mode"`
	Headers map[string]string `yaml:"headers,omitempty"`

	// JS rendering knobs.
	WaitSelector      string   `yaml:"wait_selector,omitempty"`
	WaitAfterLoadMS   int      `yaml:"wait_after_load_ms,omitempty"`
	WaitNetworkIdleMS int      `yaml:"wait_network_idle_ms,omitempty"`
	TimeoutMS         int      `yaml:"timeout_ms,omitempty"`
	Scripts           []string `yaml:"scripts,omitempty"`
}

type siteConfigStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*SiteConfig
}

func newSiteConfigStore(dir string) *siteConfigStore {
	return &siteConfigStore{
		dir:   dir,
		cache: make(map[string]*SiteConfig),
	}
}

func (s *siteConfigStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	if cfg, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	var found *SiteConfig
	labels := strings.Split(host, ".")
	for i := range labels {
		if found = s.load(strings.Join(labels[i:], ".")); found != nil {
			break
		}
	}
	s.mu.Lock()
	s.cache[host] = found
	s.mu.Unlock()
	return found
}

func (s *siteConfigStore) load(host string) *SiteConfig {
	if s.dir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, host+".yaml"))
	if err != nil {
		return nil
	}
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	cfg.Mode = strings.TrimSpace(strings.ToLower(cfg.Mode))
	return &cfg
}
