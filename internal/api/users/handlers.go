// internal/api/users/handlers.go
package users

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/roombook/internal/api/apiutil"
	"github.com/codr1/roombook/internal/api/authz"
	dbq "github.com/codr1/roombook/internal/db/queries"
)

const userQueryTimeout = 5 * time.Second

var (
	queries     *dbq.Queries
	queriesOnce sync.Once
)

type userResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Role        string            `json:"role"`
	Teams       []apiutil.TeamRef `json:"teams"`
	Permissions []string          `json:"permissions"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

// GET /v1/user/{id}
func HandleUserGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, r, apiutil.Internal("Internal Server Error", nil))
		return
	}
	if apiutil.RequireUser(w, r) == nil {
		return
	}

	userID, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	user, err := queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.NotFound("user"))
			return
		}
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load user", err))
		return
	}

	teams, err := queries.ListTeamsForUser(ctx, userID)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load teams", err))
		return
	}
	refs := make([]apiutil.TeamRef, len(teams))
	for i, t := range teams {
		refs[i] = apiutil.TeamRef{ID: t.ID, Name: t.Name, Type: t.TeamType}
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, userResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		Teams:       refs,
		Permissions: authz.Permissions(user.Role),
	})
}
