package client

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry decodes the exp claim of a JWT without verifying its
// signature. The server is the only party that verifies tokens.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// expiresWithin reports whether token is unreadable or expires before
// now+window.
func expiresWithin(token string, now time.Time, window time.Duration) bool {
	exp, ok := tokenExpiry(token)
	if !ok {
		return true
	}
	return !exp.After(now.Add(window))
}
