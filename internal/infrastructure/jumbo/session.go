package jumbo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// The web session needs at least these cookies; the rest are bot-management
// extras that come and go.
var requiredCookies = []string{"user-session", "auth-session"}

// AuthInfo is the session status exposed on the auth endpoint.
type AuthInfo struct {
	Authenticated   bool     `json:"authenticated"`
	CookiesCount    int      `json:"cookies_count"`
	CookiesPresent  []string `json:"cookies_present"`
	RequiredCookies []string `json:"required_cookies"`
}

// Session holds the retailer web session cookies and persists them to a
// JSON file so a restart does not force a new login.
type Session struct {
	mu      sync.RWMutex
	cookies map[string]string
	path    string
}

type sessionFile struct {
	Cookies map[string]string `json:"cookies"`
	SavedAt string            `json:"saved_at"`
}

// NewSession loads any previously saved cookies from path. A missing or
// unreadable file just starts an empty session.
func NewSession(path string) *Session {
	s := &Session{cookies: make(map[string]string), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var saved sessionFile
	if err := json.Unmarshal(data, &saved); err != nil {
		return s
	}
	if saved.Cookies != nil {
		s.cookies = saved.Cookies
	}
	return s
}

// IsAuthenticated reports whether all required session cookies are present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range requiredCookies {
		if _, ok := s.cookies[name]; !ok {
			return false
		}
	}
	return true
}

// Info returns the session status snapshot.
func (s *Session) Info() AuthInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	present := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		present = append(present, name)
	}
	authenticated := true
	for _, name := range requiredCookies {
		if _, ok := s.cookies[name]; !ok {
			authenticated = false
			break
		}
	}
	return AuthInfo{
		Authenticated:   authenticated,
		CookiesCount:    len(s.cookies),
		CookiesPresent:  present,
		RequiredCookies: requiredCookies,
	}
}

// Attach adds the session cookies to an outgoing request.
func (s *Session) Attach(req *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, value := range s.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// Replace swaps in a freshly captured cookie set and persists it.
func (s *Session) Replace(cookies map[string]string) error {
	s.mu.Lock()
	s.cookies = make(map[string]string, len(cookies))
	for name, value := range cookies {
		s.cookies[name] = value
	}
	s.mu.Unlock()
	return s.save()
}

func (s *Session) save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	file := sessionFile{Cookies: s.cookies, SavedAt: time.Now().Format(time.RFC3339)}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
