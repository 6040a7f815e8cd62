package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"trainschedule/internal/domain"
)

// RefreshSkew is how close to expiry an access token may get before it is
// refreshed ahead of a request.
const RefreshSkew = 30 * time.Second

const (
	refreshKey    = "refresh"
	endSessionKey = "end-session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionManager owns a user's token pair. Tokens live in two stores: a
// cookie store scoped to the API origin and a durable store that survives
// restarts. Reads prefer the cookie store.
type SessionManager struct {
	api     *Client
	authed  *Client
	cookies *CookieStore
	durable TokenStore
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex // serializes writes to both stores
	flight singleflight.Group
}

// NewSessionManager returns a SessionManager that talks to the API through
// api and persists tokens in durable.
func NewSessionManager(api *Client, durable TokenStore, log zerolog.Logger) (*SessionManager, error) {
	cookies, err := NewCookieStore(api.BaseURL())
	if err != nil {
		return nil, err
	}
	m := &SessionManager{
		api:     api.WithAuthorizer(nil),
		cookies: cookies,
		durable: durable,
		log:     log,
		now:     time.Now,
	}
	m.authed = api.WithAuthorizer(m)
	return m, nil
}

// Client returns an API client whose requests carry this session's token.
func (m *SessionManager) Client() *Client { return m.authed }

// AccessToken returns the stored access token or "".
func (m *SessionManager) AccessToken() string { return m.tokens().AccessToken }

// RefreshToken returns the stored refresh token or "".
func (m *SessionManager) RefreshToken() string { return m.tokens().RefreshToken }

// IsAuthenticated reports whether a readable access token with an expiry in
// the future is stored.
func (m *SessionManager) IsAuthenticated() bool {
	exp, ok := tokenExpiry(m.AccessToken())
	return ok && exp.After(m.now())
}

// Login exchanges credentials for a token pair and returns the profile of
// the signed-in user. Stored tokens are untouched on failure.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*domain.Profile, error) {
	return m.signIn(ctx, "/auth/login", credentials{Email: email, Password: password})
}

// Register creates an account and signs it in.
func (m *SessionManager) Register(ctx context.Context, email, password string) (*domain.Profile, error) {
	return m.signIn(ctx, "/auth/register", credentials{Email: email, Password: password})
}

func (m *SessionManager) signIn(ctx context.Context, path string, creds credentials) (*domain.Profile, error) {
	var pair domain.TokenPair
	if err := m.api.Do(ctx, http.MethodPost, path, creds, &pair); err != nil {
		return nil, err
	}
	if err := m.setTokens(pair); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	return m.Me(ctx)
}

// Me fetches the profile of the signed-in user.
func (m *SessionManager) Me(ctx context.Context) (*domain.Profile, error) {
	var p domain.Profile
	if err := m.authed.Do(ctx, http.MethodGet, "/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Logout revokes the refresh token on the server and clears both stores.
// A failed server call is logged and does not keep the tokens around.
func (m *SessionManager) Logout(ctx context.Context) error {
	if refresh := m.RefreshToken(); refresh != "" {
		if err := m.api.Do(ctx, http.MethodPost, "/auth/logout", refreshRequest{RefreshToken: refresh}, nil); err != nil {
			m.log.Warn().Err(err).Msg("logout request failed")
		}
	}
	return m.clearTokens()
}

// RefreshTokens exchanges the stored refresh token for a new pair. Tokens
// are cleared when the server rejects the refresh token.
func (m *SessionManager) RefreshTokens(ctx context.Context) (domain.TokenPair, error) {
	pair, err := m.sharedRefresh(ctx, true)
	var waitErr *abandonedError
	if errors.As(err, &waitErr) {
		return pair, waitErr.err
	}
	return pair, err
}

// AttachAuth sets the bearer header on req. Requests go out unchanged when
// no access token is stored. A token expiring within RefreshSkew is
// refreshed first; if that fails the session is ended and the returned
// error matches ErrUnauthenticated. A request whose own deadline passes while
// it waits for the refresh fails with CodeTimeout and leaves the session.
func (m *SessionManager) AttachAuth(ctx context.Context, req *http.Request) error {
	if m.AccessToken() == "" {
		return nil
	}
	token, err := m.validAccessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// TokenSource adapts the session to oauth2 so that oauth2.NewClient shares
// the same refresh flight as Client.
func (m *SessionManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, m: m}
}

type sessionTokenSource struct {
	ctx context.Context
	m   *SessionManager
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.m.validAccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	exp, _ := tokenExpiry(token)
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer", Expiry: exp}, nil
}

func (m *SessionManager) validAccessToken(ctx context.Context) (string, error) {
	token := m.AccessToken()
	if token == "" {
		return "", ErrUnauthenticated
	}
	if !expiresWithin(token, m.now(), RefreshSkew) {
		return token, nil
	}

	pair, err := m.sharedRefresh(ctx, false)
	var waitErr *abandonedError
	if errors.As(err, &waitErr) {
		// The flight carries on and stores its result; this caller just stops waiting.
		return "", waitErr.err
	}
	if err != nil {
		if m.RefreshToken() != "" {
			m.endSession(ctx)
		}
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return pair.AccessToken, nil
}

// abandonedError reports that the caller's context ended while it waited on
// a refresh flight.
type abandonedError struct{ err *Error }

func (e *abandonedError) Error() string { return e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }

// endSession logs out once no matter how many callers observe the same
// failed refresh.
func (m *SessionManager) endSession(ctx context.Context) {
	_, _, _ = m.flight.Do(endSessionKey, func() (any, error) {
		if err := m.Logout(ctx); err != nil {
			m.log.Error().Err(err).Msg("clear tokens")
		}
		return nil, nil
	})
}

// sharedRefresh runs at most one refresh at a time. Callers arriving while
// a refresh is in flight wait for its result. Unless forced, the flight
// first re-reads the stored access token so that a caller arriving just
// after a refresh settled does not start another, and ends the session when
// the refresh fails. A caller whose context ends while waiting gets an
// *abandonedError and the flight is left to finish.
func (m *SessionManager) sharedRefresh(ctx context.Context, force bool) (domain.TokenPair, error) {
	ch := m.flight.DoChan(refreshKey, func() (any, error) {
		current := m.tokens()
		if !force && current.AccessToken != "" && !expiresWithin(current.AccessToken, m.now(), RefreshSkew) {
			return current, nil
		}
		detached := context.WithoutCancel(ctx)
		pair, err := m.refresh(detached, current.RefreshToken)
		if err != nil && !force {
			m.log.Warn().Err(err).Msg("token refresh failed, ending session")
			m.endSession(detached)
		}
		return pair, err
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.TokenPair{}, res.Err
		}
		return res.Val.(domain.TokenPair), nil
	case <-ctx.Done():
		return domain.TokenPair{}, &abandonedError{err: transportError(ctx.Err())}
	}
}

func (m *SessionManager) refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if refreshToken == "" {
		return domain.TokenPair{}, ErrNoRefreshToken
	}

	var pair domain.TokenPair
	err := m.api.Do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &pair)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		if cerr := m.clearTokens(); cerr != nil {
			m.log.Error().Err(cerr).Msg("clear tokens")
		}
		return domain.TokenPair{}, err
	}
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := m.setTokens(pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store tokens: %w", err)
	}
	m.log.Debug().Msg("tokens refreshed")
	return pair, nil
}

// tokens merges both stores, preferring the cookie store per field.
func (m *SessionManager) tokens() domain.TokenPair {
	var pair domain.TokenPair
	for _, s := range []TokenStore{m.cookies, m.durable} {
		p, err := s.Load()
		if err != nil {
			m.log.Warn().Err(err).Msg("read token store")
			continue
		}
		if pair.AccessToken == "" {
			pair.AccessToken = p.AccessToken
		}
		if pair.RefreshToken == "" {
			pair.RefreshToken = p.RefreshToken
		}
	}
	return pair
}

func (m *SessionManager) setTokens(pair domain.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.cookies.Save(pair), m.durable.Save(pair))
}

func (m *SessionManager) clearTokens() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.cookies.Clear(), m.durable.Clear())
}
