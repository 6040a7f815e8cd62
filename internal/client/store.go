package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trainschedule/internal/domain"
)

// Cookie names shared with the API server.
const (
	AccessCookieName  = "auth_access_token"
	RefreshCookieName = "auth_refresh_token"
)

// RefreshCookieTTL is how long the refresh cookie is kept.
const RefreshCookieTTL = 7 * 24 * time.Hour

// TokenStore persists a token pair. Load returns an empty pair when nothing
// is stored.
type TokenStore interface {
	Load() (domain.TokenPair, error)
	Save(pair domain.TokenPair) error
	Clear() error
}

// FileStore keeps tokens in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load() (domain.TokenPair, error) {
	var pair domain.TokenPair
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return pair, nil
	}
	if err != nil {
		return pair, err
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return pair, nil
}

func (f *FileStore) Save(pair domain.TokenPair) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStore keeps tokens for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	pair domain.TokenPair
}

func (m *MemoryStore) Load() (domain.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair, nil
}

func (m *MemoryStore) Save(pair domain.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.Save(domain.TokenPair{})
}

// CookieStore keeps tokens as cookies scoped to the API origin, the way a
// browser session holds them. The access cookie lives for the session, the
// refresh cookie for RefreshCookieTTL.
type CookieStore struct {
	jar http.CookieJar
	u   *url.URL
}

// NewCookieStore returns a CookieStore for the API at base.
func NewCookieStore(base *url.URL) (*CookieStore, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	root := *base
	root.Path = "/"
	root.RawQuery = ""
	return &CookieStore{jar: jar, u: &root}, nil
}

// Jar exposes the underlying cookie jar.
func (c *CookieStore) Jar() http.CookieJar { return c.jar }

func (c *CookieStore) Load() (domain.TokenPair, error) {
	var pair domain.TokenPair
	for _, ck := range c.jar.Cookies(c.u) {
		switch ck.Name {
		case AccessCookieName:
			pair.AccessToken = ck.Value
		case RefreshCookieName:
			pair.RefreshToken = ck.Value
		}
	}
	return pair, nil
}

func (c *CookieStore) Save(pair domain.TokenPair) error {
	c.jar.SetCookies(c.u, []*http.Cookie{
		c.cookie(AccessCookieName, pair.AccessToken, 0),
		c.cookie(RefreshCookieName, pair.RefreshToken, int(RefreshCookieTTL.Seconds())),
	})
	return nil
}

func (c *CookieStore) Clear() error {
	c.jar.SetCookies(c.u, []*http.Cookie{
		c.cookie(AccessCookieName, "", -1),
		c.cookie(RefreshCookieName, "", -1),
	})
	return nil
}

func (c *CookieStore) cookie(name, value string, maxAge int) *http.Cookie {
	if value == "" {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   c.u.Scheme == "https",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
