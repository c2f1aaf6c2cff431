package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// cookieClaims is the payload of the signed session cookie. It only names
// the server-side session; the identity itself never leaves the server.
type cookieClaims struct {
	jwt.RegisteredClaims
}

// SignSessionID wraps a session id in an HS256 token valid until expiresAt.
func SignSessionID(sessionID, issuer, key string, expiresAt time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id required")
	}
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// ParseSessionID validates a cookie token and returns the session id it names.
func ParseSessionID(tokenStr, key, issuer string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &cookieClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*cookieClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return "", errors.New("issuer mismatch")
	}
	if claims.ID == "" {
		return "", errors.New("missing session id")
	}
	return claims.ID, nil
}
