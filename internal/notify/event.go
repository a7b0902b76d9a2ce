// Package notify publishes reservation lifecycle events to downstream
// consumers. Publishing is best effort: callers log failures and move on.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const EventReservationOverridden = "reservation.overridden"

// OverriddenEvent is published once per reservation displaced by an override.
type OverriddenEvent struct {
	Type                    string    `json:"type"`
	ReservationID           int64     `json:"reservation_id"`
	RoomID                  int64     `json:"room_id"`
	RoomNumber              string    `json:"room_number"`
	TeamID                  int64     `json:"team_id"`
	CreatedBy               int64     `json:"created_by"`
	Start                   time.Time `json:"start"`
	End                     time.Time `json:"end"`
	OverridingReservationID int64     `json:"overriding_reservation_id"`
	OverridingTeamID        int64     `json:"overriding_team_id"`
	OccurredAt              time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishOverridden(ctx context.Context, event OverriddenEvent) error
}

// LogPublisher writes events to the logger. It is the default when no broker
// is configured.
type LogPublisher struct{}

func (LogPublisher) PublishOverridden(ctx context.Context, event OverriddenEvent) error {
	log.Ctx(ctx).Info().
		Str("event", event.Type).
		Int64("reservation_id", event.ReservationID).
		Int64("room_id", event.RoomID).
		Int64("team_id", event.TeamID).
		Int64("overriding_reservation_id", event.OverridingReservationID).
		Msg("Reservation overridden")
	return nil
}
