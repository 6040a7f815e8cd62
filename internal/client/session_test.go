package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"trainschedule/internal/domain"
)

func mint(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func newSession(t *testing.T, baseURL string) (*SessionManager, *MemoryStore) {
	t.Helper()
	api, err := New(baseURL, WithTimeout(2*time.Second))
	require.NoError(t, err)
	store := &MemoryStore{}
	m, err := NewSessionManager(api, store, zerolog.Nop())
	require.NoError(t, err)
	return m, store
}

func TestIsAuthenticated(t *testing.T) {
	m, _ := newSession(t, "http://api.test")

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"expired", mint(t, time.Now().Add(-time.Minute)), false},
		{"valid for a minute", mint(t, time.Now().Add(60*time.Second)), true},
		{"two segments", "eyJhbGciOiJIUzI1NiJ9.eyJleHAiOjF9", false},
		{"garbage", "not-a-token", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: tt.token, RefreshToken: "r"}))
			assert.Equal(t, tt.want, m.IsAuthenticated())
		})
	}
}

func TestTokensPreferCookieStore(t *testing.T) {
	m, store := newSession(t, "http://api.test")

	require.NoError(t, store.Save(domain.TokenPair{AccessToken: "durable-a", RefreshToken: "durable-r"}))
	assert.Equal(t, "durable-a", m.AccessToken(), "durable store is the fallback")

	require.NoError(t, m.cookies.Save(domain.TokenPair{AccessToken: "cookie-a"}))
	assert.Equal(t, "cookie-a", m.AccessToken())
	assert.Equal(t, "durable-r", m.RefreshToken())
}

func TestAttachAuth_ConcurrentRefreshIsShared(t *testing.T) {
	fresh := mint(t, time.Now().Add(15*time.Minute))

	var refreshCalls atomic.Int32
	var mu sync.Mutex
	var seen []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var req refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(domain.TokenPair{AccessToken: fresh, RefreshToken: "r2"})
	})
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m, _ := newSession(t, srv.URL)
	// Inside the skew window, so every request wants a refresh.
	require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: mint(t, time.Now().Add(10*time.Second)), RefreshToken: "r1"}))

	start := make(chan struct{})
	errs := make(chan error, 5)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- m.Client().Do(context.Background(), http.MethodGet, "/ping", nil, nil)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshCalls.Load())
	require.Len(t, seen, 5)
	for _, h := range seen {
		assert.Equal(t, "Bearer "+fresh, h)
	}
	assert.Equal(t, "r2", m.RefreshToken())
}

func TestAttachAuth_PassThroughWithoutToken(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m, _ := newSession(t, srv.URL)
	require.NoError(t, m.Client().Do(context.Background(), http.MethodGet, "/stations", nil, nil))
	assert.Empty(t, header)
}

func TestAttachAuth_RefreshRejectedEndsSession(t *testing.T) {
	var pinged atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token","code":"UNAUTHORIZED"}`))
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		pinged.Store(true)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m, store := newSession(t, srv.URL)
	require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: mint(t, time.Now().Add(-time.Minute)), RefreshToken: "stale"}))

	err := m.Client().Do(context.Background(), http.MethodGet, "/ping", nil, nil)
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.False(t, pinged.Load(), "request must not be sent without a valid token")

	assert.Empty(t, m.AccessToken())
	assert.Empty(t, m.RefreshToken())
	pair, _ := store.Load()
	assert.Equal(t, domain.TokenPair{}, pair)
}

func TestAttachAuth_CallerTimeoutKeepsSession(t *testing.T) {
	fresh := mint(t, time.Now().Add(15*time.Minute))
	var logouts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(domain.TokenPair{AccessToken: fresh, RefreshToken: "r2"})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m, store := newSession(t, srv.URL)
	require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: mint(t, time.Now().Add(10*time.Second)), RefreshToken: "r1"}))

	err := m.Client().Do(context.Background(), http.MethodGet, "/ping", nil, nil, WithRequestTimeout(50*time.Millisecond))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeTimeout, apiErr.Code)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "r1", m.RefreshToken(), "giving up on the wait must not clear tokens")

	require.Eventually(t, func() bool { return m.RefreshToken() == "r2" }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, fresh, m.AccessToken())
	stored, _ := store.Load()
	assert.Equal(t, "r2", stored.RefreshToken)
	assert.Zero(t, logouts.Load())
}

func TestAttachAuth_FailedRefreshLogsOutOnce(t *testing.T) {
	var logouts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m, store := newSession(t, srv.URL)
	require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: mint(t, time.Now().Add(10*time.Second)), RefreshToken: "r1"}))

	start := make(chan struct{})
	errs := make(chan error, 5)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- m.Client().Do(context.Background(), http.MethodGet, "/ping", nil, nil)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var unauthenticated int
	for err := range errs {
		if errors.Is(err, ErrUnauthenticated) {
			unauthenticated++
		}
	}
	assert.Positive(t, unauthenticated)
	assert.Equal(t, int32(1), logouts.Load())
	assert.Empty(t, m.RefreshToken())
	pair, _ := store.Load()
	assert.Equal(t, domain.TokenPair{}, pair)
}

func TestRefreshTokens(t *testing.T) {
	t.Run("no refresh token", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer srv.Close()

		m, _ := newSession(t, srv.URL)
		_, err := m.RefreshTokens(context.Background())
		assert.ErrorIs(t, err, ErrNoRefreshToken)
		assert.Zero(t, calls.Load())
	})

	t.Run("network failure keeps tokens", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		m, _ := newSession(t, srv.URL)
		pair := domain.TokenPair{AccessToken: "a", RefreshToken: "r"}
		require.NoError(t, m.setTokens(pair))

		_, err := m.RefreshTokens(context.Background())
		var apiErr *Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, CodeNetworkError, apiErr.Code)
		assert.Equal(t, "r", m.RefreshToken())
	})

	t.Run("rotates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"})
		}))
		defer srv.Close()

		m, store := newSession(t, srv.URL)
		require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"}))

		pair, err := m.RefreshTokens(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a2", pair.AccessToken)
		stored, _ := store.Load()
		assert.Equal(t, pair, stored)
	})
}

func TestLogout_ClearsOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, store := newSession(t, srv.URL)
	require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: mint(t, time.Now().Add(time.Hour)), RefreshToken: "r"}))

	require.NoError(t, m.Logout(context.Background()))

	assert.False(t, m.IsAuthenticated())
	durable, _ := store.Load()
	assert.Equal(t, domain.TokenPair{}, durable)
	cookies, _ := m.cookies.Load()
	assert.Equal(t, domain.TokenPair{}, cookies)
}

func TestLogout_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	m, _ := newSession(t, srv.URL)
	require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	require.NoError(t, m.Logout(context.Background()))
	assert.Empty(t, m.AccessToken())
	assert.Empty(t, m.RefreshToken())
}

func TestTokenSource(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	m, _ := newSession(t, srv.URL)
	token := mint(t, time.Now().Add(time.Hour))
	require.NoError(t, m.setTokens(domain.TokenPair{AccessToken: token, RefreshToken: "r"}))

	ctx := context.Background()
	hc := oauth2.NewClient(ctx, m.TokenSource(ctx))
	resp, err := hc.Get(srv.URL + "/anything")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer "+token, header)

	require.NoError(t, m.clearTokens())
	_, err = m.TokenSource(ctx).Token()
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
