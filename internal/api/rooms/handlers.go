// internal/api/rooms/handlers.go
package rooms

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

const (
	roomQueryTimeout    = 5 * time.Second
	maxRoomNumberLength = 32
)

var (
	queries     *dbq.Queries
	service     *booking.Service
	handlerOnce sync.Once
)

type roomRequest struct {
	Number string `json:"number"`
}

type roomResponse struct {
	ID           int64                         `json:"id"`
	Number       string                        `json:"number"`
	Reservations []apiutil.ReservationResponse `json:"reservations,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries, svc *booking.Service) {
	if q == nil || svc == nil {
		return
	}
	handlerOnce.Do(func() {
		queries = q
		service = svc
	})
}

// POST /v1/room
func HandleRoomCreate(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermRoomWrite) {
		return
	}
	number, ok := decodeRoom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), roomQueryTimeout)
	defer cancel()

	room, err := queries.CreateRoom(ctx, number)
	if err != nil {
		writeRoomWriteError(w, r, err, "Failed to create room")
		return
	}
	log.Ctx(r.Context()).Info().Int64("room_id", room.ID).Str("number", room.Number).Msg("Room created")
	_ = apiutil.WriteJSON(w, http.StatusCreated, roomResponse{ID: room.ID, Number: room.Number})
}

// GET /v1/rooms
func HandleRoomList(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermRoomRead) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), roomQueryTimeout)
	defer cancel()

	rooms, err := queries.ListRooms(ctx)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to list rooms", err))
		return
	}
	out := make([]roomResponse, len(rooms))
	for i, room := range rooms {
		out[i] = roomResponse{ID: room.ID, Number: room.Number}
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, out)
}

// GET /v1/room/{id}
func HandleRoomGet(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermRoomRead) {
		return
	}
	roomID, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), roomQueryTimeout)
	defer cancel()

	room, ok := loadRoom(ctx, w, r, roomID)
	if !ok {
		return
	}
	reservations, err := queries.ListReservationsByRoom(ctx, roomID)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load reservations", err))
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, roomResponse{
		ID:           room.ID,
		Number:       room.Number,
		Reservations: apiutil.NewReservationResponses(reservations),
	})
}

// PUT /v1/room/{id}
func HandleRoomUpdate(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermRoomWrite) {
		return
	}
	roomID, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	number, ok := decodeRoom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), roomQueryTimeout)
	defer cancel()

	updated, err := queries.UpdateRoomNumber(ctx, dbq.UpdateRoomNumberParams{ID: roomID, Number: number})
	if err != nil {
		writeRoomWriteError(w, r, err, "Failed to update room")
		return
	}
	if updated == 0 {
		apiutil.WriteError(w, r, apiutil.NotFound("room"))
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, roomResponse{ID: roomID, Number: number})
}

// DELETE /v1/room/{id}
// Refused with 409 while the room has reservations that have not ended.
func HandleRoomDelete(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) || !apiutil.RequirePermission(w, r, authz.PermRoomWrite) {
		return
	}
	roomID, err := apiutil.PathID(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := service.DeleteRoom(r.Context(), roomID); err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Int64("room_id", roomID).Msg("Room deleted")
	w.WriteHeader(http.StatusNoContent)
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if queries == nil || service == nil {
		log.Ctx(r.Context()).Error().Msg("Room handlers not initialized")
		apiutil.WriteError(w, r, apiutil.Internal("Internal Server Error", nil))
		return false
	}
	return true
}

func decodeRoom(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req roomRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest("Invalid request body", err))
		return "", false
	}
	number, err := apiutil.RequiredString(req.Number, "number")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return "", false
	}
	if len(number) > maxRoomNumberLength {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "number", Reason: "must be at most 32 characters"})
		return "", false
	}
	return number, true
}

func loadRoom(ctx context.Context, w http.ResponseWriter, r *http.Request, roomID int64) (dbq.Room, bool) {
	room, err := queries.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, r, apiutil.NotFound("room"))
			return dbq.Room{}, false
		}
		apiutil.WriteError(w, r, apiutil.Internal("Failed to load room", err))
		return dbq.Room{}, false
	}
	return room, true
}

func writeRoomWriteError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if dbq.IsUniqueViolation(err) {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "Room number already exists", Err: err})
		return
	}
	apiutil.WriteError(w, r, apiutil.Internal(message, err))
}
