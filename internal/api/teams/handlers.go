// internal/api/teams/handlers.go
package teams

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
	"github.com/codr1/roombook/internal/booking"
	appdb "github.com/codr1/roombook/internal/db"
	dbq "github.com/codr1/roombook/internal/db/queries"
	"github.com/codr1/roombook/internal/teamtype"
)

const (
	teamQueryTimeout  = 5 * time.Second
	maxTeamNameLength = 128
)

var (
	database    *appdb.DB
	service     *booking.Service
	handlerOnce sync.Once
)

type teamRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type memberRequest struct {
	UserID int64 `json:"user_id"`
}

type memberRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type teamResponse struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name,omitempty"`
	Type        string      `json:"type"`
	Members     []memberRef `json:"members,omitempty"`
	AdvanceTime *int64      `json:"advance_time,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(db *appdb.DB, svc *booking.Service) {
	if db == nil || svc == nil {
		return
	}
	handlerOnce.Do(func() {
		database = db
		service = svc
	})
}

// POST /v1/team
func HandleTeamCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermTeamCreate) {
		return
	}
	user := authz.UserFromContext(r.Context())

	var req teamRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest("Invalid request body", err))
		return
	}
	name, err := parseTeamName(req.Name)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	tt, ok := teamtype.Lookup(req.Type)
	if !ok {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "type", Reason: "is not a known team type"})
		return
	}
	if tt.Elevated && !apiutil.RequirePermission(w, r, authz.PermTeamCreateElevated) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	var team dbq.Team
	err = database.RunInTx(ctx, func(txdb *appdb.DB) error {
		var err error
		team, err = txdb.Queries.CreateTeam(ctx, dbq.CreateTeamParams{Name: name, TeamType: tt.Name})
		if err != nil {
			return err
		}
		return txdb.Queries.AddTeamMember(ctx, dbq.TeamMemberParams{TeamID: team.ID, UserID: user.ID})
	})
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to create team", err))
		return
	}

	logger.Info().Int64("team_id", team.ID).Str("team_type", team.TeamType).Msg("Team created")
	members := []memberRef{{ID: user.ID, Name: user.Name}}
	_ = apiutil.WriteJSON(w, http.StatusCreated, fullTeamResponse(team, members))
}

// GET /v1/team/{id}
// Members and holders of team.read.elevated see the full team; everyone
// else only its id and type.
func HandleTeamGet(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	teamID, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	team, ok := loadTeam(ctx, w, r, teamID)
	if !ok {
		return
	}
	member, err := database.Queries.IsTeamMember(ctx, dbq.TeamMemberParams{TeamID: teamID, UserID: user.ID})
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to check membership", err))
		return
	}
	if !member && !authz.HasPermission(user, authz.PermTeamReadElevated) {
		_ = apiutil.WriteJSON(w, http.StatusOK, teamResponse{ID: team.ID, Type: team.TeamType})
		return
	}

	members, err := listMembers(ctx, teamID)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load members", err))
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, fullTeamResponse(team, members))
}

// PUT /v1/team/{id}
func HandleTeamUpdate(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	teamID, ok := authorizeTeam(w, r)
	if !ok {
		return
	}

	var req renameRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest("Invalid request body", err))
		return
	}
	name, err := parseTeamName(req.Name)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	updated, err := database.Queries.UpdateTeamName(ctx, dbq.UpdateTeamNameParams{ID: teamID, Name: name})
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to update team", err))
		return
	}
	if updated == 0 {
		apiutil.WriteError(w, r, apiutil.NotFound("team"))
		return
	}
	team, ok := loadTeam(ctx, w, r, teamID)
	if !ok {
		return
	}
	members, err := listMembers(ctx, teamID)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load members", err))
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, fullTeamResponse(team, members))
}

// DELETE /v1/team/{id}
// Deletes the team's reservations and memberships along with it.
func HandleTeamDelete(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermTeamDelete) {
		return
	}
	teamID, ok := authorizeTeam(w, r)
	if !ok {
		return
	}

	if _, err := service.DeleteTeam(r.Context(), teamID); err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/team_user/{id}
func HandleTeamMemberAdd(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	teamID, ok := authorizeTeam(w, r)
	if !ok {
		return
	}
	userID, ok := decodeMember(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	if _, err := database.Queries.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.NotFound("user"))
			return
		}
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load user", err))
		return
	}
	if err := database.Queries.AddTeamMember(ctx, dbq.TeamMemberParams{TeamID: teamID, UserID: userID}); err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to add member", err))
		return
	}
	log.Ctx(r.Context()).Info().Int64("team_id", teamID).Int64("member_id", userID).Msg("Team member added")
	writeMembers(ctx, w, r, teamID)
}

// DELETE /v1/team_user/{id}
func HandleTeamMemberRemove(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	teamID, ok := authorizeTeam(w, r)
	if !ok {
		return
	}
	userID, ok := decodeMember(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	removed, err := database.Queries.RemoveTeamMember(ctx, dbq.TeamMemberParams{TeamID: teamID, UserID: userID})
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to remove member", err))
		return
	}
	if removed == 0 {
		apiutil.WriteError(w, r, apiutil.NotFound("team member"))
		return
	}
	log.Ctx(r.Context()).Info().Int64("team_id", teamID).Int64("member_id", userID).Msg("Team member removed")
	writeMembers(ctx, w, r, teamID)
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if database == nil || service == nil {
		log.Ctx(r.Context()).Error().Msg("Team handlers not initialized")
		apiutil.WriteError(w, r, apiutil.Internal("Internal Server Error", nil))
		return false
	}
	return true
}

// authorizeTeam loads {id} and allows members and admins through.
func authorizeTeam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return 0, false
	}
	teamID, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return 0, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	if _, ok := loadTeam(ctx, w, r, teamID); !ok {
		return 0, false
	}
	if authz.IsAdmin(user) {
		return teamID, true
	}
	member, err := database.Queries.IsTeamMember(ctx, dbq.TeamMemberParams{TeamID: teamID, UserID: user.ID})
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to check membership", err))
		return 0, false
	}
	if !member {
		log.Ctx(r.Context()).Warn().Int64("team_id", teamID).Msg("Team access denied: not a member")
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "Forbidden"})
		return 0, false
	}
	return teamID, true
}

func loadTeam(ctx context.Context, w http.ResponseWriter, r *http.Request, teamID int64) (dbq.Team, bool) {
	team, err := database.Queries.GetTeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.NotFound("team"))
			return dbq.Team{}, false
		}
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load team", err))
		return dbq.Team{}, false
	}
	return team, true
}

func decodeMember(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req memberRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest("Invalid request body", err))
		return 0, false
	}
	if req.UserID <= 0 {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "user_id", Reason: "must be greater than 0"})
		return 0, false
	}
	return req.UserID, true
}

func listMembers(ctx context.Context, teamID int64) ([]memberRef, error) {
	users, err := database.Queries.ListTeamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members := make([]memberRef, len(users))
	for i, u := range users {
		members[i] = memberRef{ID: u.ID, Name: u.Name}
	}
	return members, nil
}

func writeMembers(ctx context.Context, w http.ResponseWriter, r *http.Request, teamID int64) {
	team, ok := loadTeam(ctx, w, r, teamID)
	if !ok {
		return
	}
	members, err := listMembers(ctx, teamID)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load members", err))
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, fullTeamResponse(team, members))
}

func fullTeamResponse(team dbq.Team, members []memberRef) teamResponse {
	advance := team.AdvanceBookingDays
	return teamResponse{
		ID:          team.ID,
		Name:        team.Name,
		Type:        team.TeamType,
		Members:     members,
		AdvanceTime: &advance,
	}
}

func parseTeamName(raw string) (string, error) {
	name, err := apiutil.RequiredString(raw, "name")
	if err != nil {
		return "", err
	}
	if len(name) > maxTeamNameLength {
		return "", apiutil.FieldError{Field: "name", Reason: "must be at most 128 characters"}
	}
	return name, nil
}
