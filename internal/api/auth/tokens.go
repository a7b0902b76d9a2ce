package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "roombook"

var errInvalidSubject = errors.New("token subject is not a user id")

// IssueToken signs an HS256 token whose subject is the user id.
func IssueToken(userID int64, secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errAuthConfigMissing
	}
	claims := jwtlib.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies token and returns the user id it was issued for.
func ParseToken(token, secret string) (int64, error) {
	if secret == "" {
		return 0, errAuthConfigMissing
	}
	claims := &jwtlib.RegisteredClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, jwtlib.ErrTokenInvalidClaims
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidSubject, claims.Subject)
	}
	return userID, nil
}
