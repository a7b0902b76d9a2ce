// internal/api/reservations/handlers.go
package reservations

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
	dbq "github.com/codr1/roombook/internal/db/queries"
)

var (
	queries     *dbq.Queries
	service     *booking.Service
	queriesOnce sync.Once
)

const reservationQueryTimeout = 5 * time.Second

type reservationRequest struct {
	RoomID   int64  `json:"room_id"`
	TeamID   int64  `json:"team_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Override bool   `json:"override"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries, svc *booking.Service) {
	if q == nil || svc == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
		service = svc
	})
}

// POST /v1/reservation
func HandleReservationCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermReservationWrite) {
		return
	}
	user := authz.UserFromContext(r.Context())

	req, err := decodeReservationRequest(r, user.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	if err := requireTeamMember(ctx, user, req.TeamID); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	saved, err := service.CreateReservation(ctx, req)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	logger.Info().
		Int64("reservation_id", saved.ID).
		Int64("room_id", saved.RoomID).
		Int64("team_id", saved.TeamID).
		Msg("Reservation created")
	_ = apiutil.WriteJSON(w, http.StatusCreated, apiutil.NewReservationResponse(saved))
}

// GET /v1/reservation/{id}
func HandleReservationGet(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermRoomRead) {
		return
	}
	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	existing, err := loadReservation(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewReservationResponse(existing))
}

// GET /v1/reservations?room_id=&start=&end=
// Lists the reservations on a room that overlap the window.
func HandleReservationsList(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermRoomRead) {
		return
	}

	query := r.URL.Query()
	roomID, err := apiutil.ParsePositiveInt64Field(query.Get("room_id"), "room_id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	interval, err := parseInterval(query.Get("start"), query.Get("end"))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	if _, err := queries.GetRoomByID(ctx, roomID); err != nil {
		apiutil.WriteError(w, r, lookupError("room", err))
		return
	}
	overlapping, err := queries.ListOverlappingReservations(ctx, dbq.ListOverlappingReservationsParams{
		RoomID:    roomID,
		StartTime: interval.Start,
		EndTime:   interval.End,
	})
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to list reservations", err))
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewReservationResponses(overlapping))
}

// PUT /v1/reservation/{id}
// The caller must belong to both the current and the requested team.
func HandleReservationUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermReservationWrite) {
		return
	}
	user := authz.UserFromContext(r.Context())

	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	req, err := decodeReservationRequest(r, user.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	existing, err := loadReservation(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := requireTeamMember(ctx, user, existing.TeamID); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if req.TeamID != existing.TeamID {
		if err := requireTeamMember(ctx, user, req.TeamID); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}

	saved, err := service.UpdateReservation(ctx, id, req)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	logger.Info().Int64("reservation_id", saved.ID).Msg("Reservation updated")
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewReservationResponse(saved))
}

// DELETE /v1/reservation/{id}
func HandleReservationDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermReservationWrite) {
		return
	}
	user := authz.UserFromContext(r.Context())

	id, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	existing, err := loadReservation(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := requireTeamMember(ctx, user, existing.TeamID); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := service.DeleteReservation(ctx, id); err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	logger.Info().Int64("reservation_id", id).Msg("Reservation deleted")
	w.WriteHeader(http.StatusNoContent)
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if queries == nil || service == nil {
		log.Ctx(r.Context()).Error().Msg("Reservation handlers not initialized")
		apiutil.WriteError(w, r, apiutil.Internal("Internal Server Error", nil))
		return false
	}
	return true
}

func decodeReservationRequest(r *http.Request, userID int64) (booking.ReservationRequest, error) {
	var body reservationRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		return booking.ReservationRequest{}, apiutil.BadRequest("Invalid request body", err)
	}
	if body.RoomID <= 0 {
		return booking.ReservationRequest{}, apiutil.FieldError{Field: "room_id", Reason: "must be a positive integer"}
	}
	if body.TeamID <= 0 {
		return booking.ReservationRequest{}, apiutil.FieldError{Field: "team_id", Reason: "must be a positive integer"}
	}
	interval, err := parseInterval(body.Start, body.End)
	if err != nil {
		return booking.ReservationRequest{}, err
	}
	return booking.ReservationRequest{
		RoomID:   body.RoomID,
		TeamID:   body.TeamID,
		UserID:   userID,
		Interval: interval,
		Override: body.Override,
	}, nil
}

func parseInterval(rawStart, rawEnd string) (booking.Interval, error) {
	start, err := apiutil.ParseTimestamp(rawStart, "start")
	if err != nil {
		return booking.Interval{}, err
	}
	end, err := apiutil.ParseTimestamp(rawEnd, "end")
	if err != nil {
		return booking.Interval{}, err
	}
	interval := booking.Interval{Start: start, End: end}
	if err := interval.Validate(); err != nil {
		return booking.Interval{}, apiutil.BadRequest(err.Error(), err)
	}
	return interval, nil
}

// requireTeamMember returns 404 for a missing team and 403 when the caller
// is neither a member nor an admin. It reads outside the booking transaction,
// so it only gates the caller. The service re-checks the team inside its
// transaction and returns ErrNotFound if the team was deleted in between.
func requireTeamMember(ctx context.Context, user *authz.AuthUser, teamID int64) error {
	if _, err := queries.GetTeamByID(ctx, teamID); err != nil {
		return lookupError("team", err)
	}
	if authz.IsAdmin(user) {
		return nil
	}
	member, err := queries.IsTeamMember(ctx, dbq.TeamMemberParams{TeamID: teamID, UserID: user.ID})
	if err != nil {
		return apiutil.Internal("Failed to check team membership", err)
	}
	if !member {
		return apiutil.HandlerError{Status: http.StatusForbidden, Message: "Not a member of this team"}
	}
	return nil
}

func loadReservation(ctx context.Context, id int64) (dbq.ReservationDetail, error) {
	existing, err := queries.GetReservationByID(ctx, id)
	if err != nil {
		return dbq.ReservationDetail{}, lookupError("reservation", err)
	}
	return existing, nil
}

func lookupError(entity string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apiutil.NotFound(entity)
	}
	return apiutil.Internal("Failed to load "+entity, err)
}
