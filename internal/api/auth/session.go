package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/codr1/roombook/internal/api/authz"
)

var errAuthConfigMissing = errors.New("auth configuration missing")

// UserFromRequest resolves the bearer token on r. It returns a nil user and
// nil error when there is no token, the token does not verify, or its user
// no longer exists.
func UserFromRequest(r *http.Request) (*authz.AuthUser, error) {
	if r == nil {
		return nil, nil
	}
	token, ok := bearerToken(r)
	if !ok {
		return nil, nil
	}

	if appConfig == nil || appConfig.App.SecretKey == "" {
		return nil, errAuthConfigMissing
	}
	if userQueries == nil {
		return nil, errors.New("auth queries not initialized")
	}

	userID, err := ParseToken(token, appConfig.App.SecretKey)
	if err != nil {
		return nil, nil
	}

	user, err := userQueries.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &authz.AuthUser{
		ID:   user.ID,
		Name: user.Name,
		Role: user.Role,
	}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
