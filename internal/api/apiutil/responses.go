package apiutil

import (
	"errors"
	"net/http"

	"github.com/codr1/roombook/internal/booking"
	"github.com/codr1/roombook/internal/db/queries"
)

type RoomRef struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

type TeamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

type ReservationResponse struct {
	ID        int64   `json:"id"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Room      RoomRef `json:"room"`
	Team      TeamRef `json:"team"`
	CreatedBy int64   `json:"created_by"`
}

type ConflictResponse struct {
	Error       string                `json:"error"`
	Overridable bool                  `json:"overridable"`
	Conflicts   []ReservationResponse `json:"conflicts"`
}

func NewReservationResponse(r queries.ReservationDetail) ReservationResponse {
	return ReservationResponse{
		ID:        r.ID,
		Start:     FormatTimestamp(r.StartTime),
		End:       FormatTimestamp(r.EndTime),
		Room:      RoomRef{ID: r.RoomID, Number: r.RoomNumber},
		Team:      TeamRef{ID: r.TeamID, Name: r.TeamName, Type: r.TeamType},
		CreatedBy: r.CreatedBy,
	}
}

func NewReservationResponses(details []queries.ReservationDetail) []ReservationResponse {
	out := make([]ReservationResponse, len(details))
	for i, d := range details {
		out[i] = NewReservationResponse(d)
	}
	return out
}

// WriteBookingError maps a booking.Service error onto a response. A
// conflict gets a 409 listing the reservations in the way.
func WriteBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *booking.ConflictError
	var notFound booking.NotFoundError
	switch {
	case errors.As(err, &conflict):
		_ = WriteJSON(w, http.StatusConflict, ConflictResponse{
			Error:       conflict.Error(),
			Overridable: conflict.Overridable,
			Conflicts:   NewReservationResponses(conflict.Conflicts),
		})
	case errors.As(err, &notFound):
		WriteError(w, r, HandlerError{Status: http.StatusNotFound, Message: notFound.Error(), Err: err})
	case errors.Is(err, booking.ErrInvalidInterval), errors.Is(err, booking.ErrBeyondHorizon):
		WriteError(w, r, BadRequest(err.Error(), err))
	case errors.Is(err, booking.ErrRoomInUse):
		WriteError(w, r, HandlerError{Status: http.StatusConflict, Message: err.Error(), Err: err})
	default:
		WriteError(w, r, Internal("Storage failure", err))
	}
}
