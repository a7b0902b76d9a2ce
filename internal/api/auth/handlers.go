package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/codr1/roombook/internal/api/apiutil"
	"github.com/codr1/roombook/internal/api/authz"
	"github.com/codr1/roombook/internal/config"
	"github.com/codr1/roombook/internal/db/queries"
	"github.com/codr1/roombook/internal/ratelimit"
)

const maxUsernameLength = 64

var (
	userQueries  *queries.Queries
	appConfig    *config.Config
	limiter      *rate.Limiter
	tokenLimiter ratelimit.TokenLimiter
	now          = time.Now
)

type tokenRequest struct {
	Username string `json:"username"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	UserID    int64  `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

func InitHandlers(q *queries.Queries, cfg *config.Config, tl ratelimit.TokenLimiter) {
	userQueries = q
	appConfig = cfg
	tokenLimiter = tl
	limiter = rate.NewLimiter(rate.Limit(100), 10) // More restrictive for auth
}

// HandleTokenIssue handles POST /v1/auth. The user is created on first use
// with the student role.
func HandleTokenIssue(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if userQueries == nil || appConfig == nil {
		logger.Error().Msg("Auth handlers not initialized")
		apiutil.WriteError(w, r, apiutil.Internal("Internal Server Error", errAuthConfigMissing))
		return
	}
	if limiter != nil && !limiter.Allow() {
		_ = apiutil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		return
	}

	var req tokenRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest("Invalid request body", err))
		return
	}
	username, err := parseUsername(req.Username)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	clientIP := ratelimit.GetClientIP(r, appConfig.Auth.TrustProxy)
	if tokenLimiter != nil {
		result := tokenLimiter.CheckTokenIssue(r.Context(), username, clientIP)
		if !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), username, clientIP, result.Reason)
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			_ = apiutil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many token requests"})
			return
		}
	}

	user, err := findOrCreateUser(r, username)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load user", err))
		return
	}

	issuedAt := now()
	ttl := appConfig.TokenTTL()
	token, err := IssueToken(user.ID, appConfig.App.SecretKey, ttl, issuedAt)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to issue token", err))
		return
	}
	if tokenLimiter != nil {
		tokenLimiter.RecordTokenIssue(r.Context(), username, clientIP)
	}

	logger.Info().Int64("user_id", user.ID).Msg("Token issued")
	_ = apiutil.WriteJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: issuedAt.Add(ttl).UTC().Format(time.RFC3339),
	})
}

func parseUsername(raw string) (string, error) {
	username, err := apiutil.RequiredString(raw, "username")
	if err != nil {
		return "", err
	}
	if len(username) > maxUsernameLength {
		return "", apiutil.FieldError{Field: "username", Reason: "must be at most 64 characters"}
	}
	if strings.ContainsAny(username, " \t\r\n@") {
		return "", apiutil.FieldError{Field: "username", Reason: "must not contain spaces or @"}
	}
	return username, nil
}

func findOrCreateUser(r *http.Request, username string) (queries.User, error) {
	ctx := r.Context()
	user, err := userQueries.GetUserByName(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return queries.User{}, err
	}

	user, err = userQueries.CreateUser(ctx, queries.CreateUserParams{
		Name:  username,
		Email: username + "@",
		Role:  authz.RoleStudent,
	})
	if queries.IsUniqueViolation(err) {
		// Lost a race with a concurrent first login.
		return userQueries.GetUserByName(ctx, username)
	}
	if err != nil {
		return queries.User{}, err
	}
	log.Ctx(ctx).Info().Int64("user_id", user.ID).Str("username", username).Msg("User created")
	return user, nil
}
