package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims are the claims the backend puts into a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// ParseSessionJWT verifies an HS256 session token and returns its subject.
func ParseSessionJWT(tokenString string, secret []byte) (string, *SessionClaims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid {
		return "", nil, ErrInvalidSession
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", nil, fmt.Errorf("%w: missing sub", ErrInvalidSession)
	}

	return sub, &claims, nil
}

// GenerateSessionJWT signs a session token. The backend issues these in
// production; the server uses it for tests and local tooling.
func GenerateSessionJWT(userID string, secret []byte, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{RegisteredClaims: claims})
	return token.SignedString(secret)
}

// SessionExpiry reads the exp claim of a session token without verifying it.
// Only call it on tokens that were verified earlier.
func SessionExpiry(tokenString string) (time.Time, error) {
	var claims SessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp", ErrInvalidSession)
	}
	return claims.ExpiresAt.Time, nil
}
