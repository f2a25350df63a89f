package preview

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

const defaultJarIdle = 30 * time.Minute

type visitorJar struct {
	jar      http.CookieJar
	lastUsed time.Time
}

// cookieJarStore keeps one jar per visitor so upstream sessions survive
// between previews. Jars unused for longer than idle are dropped.
type cookieJarStore struct {
	mu   sync.Mutex
	now  func() time.Time
	idle time.Duration
	jars map[string]*visitorJar
}

func newCookieJarStore(now func() time.Time, idle time.Duration) *cookieJarStore {
	if now == nil {
		now = time.Now
	}
	return &cookieJarStore{now: now, idle: idle, jars: make(map[string]*visitorJar)}
}

// Get returns the visitor's jar, creating it on first use.
func (s *cookieJarStore) Get(visitor string) http.CookieJar {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idle > 0 {
		for k, v := range s.jars {
			if k != visitor && now.Sub(v.lastUsed) >= s.idle {
				delete(s.jars, k)
			}
		}
	}
	if v, ok := s.jars[visitor]; ok && (s.idle <= 0 || now.Sub(v.lastUsed) < s.idle) {
		v.lastUsed = now
		return v.jar
	}
	jar, _ := cookiejar.New(nil)
	s.jars[visitor] = &visitorJar{jar: jar, lastUsed: now}
	return jar
}

// Len reports how many visitors currently hold a jar.
func (s *cookieJarStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jars)
}

// deriveClientKey identifies a visitor by the first forwarded address (or the
// peer address) and user agent.
func deriveClientKey(r *http.Request) string {
	host := ""
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if host == "" {
		h, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || h == "" {
			h = r.RemoteAddr
		}
		host = h
	}
	return host + "|" + r.UserAgent()
}
