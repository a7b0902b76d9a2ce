// Package booking implements the reservation engine. It detects overlaps,
// settles conflicts by team priority and runs the cascading deletes. Every
// operation runs inside a single database transaction.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	appdb "github.com/codr1/roombook/internal/db"
	"github.com/codr1/roombook/internal/db/queries"
	"github.com/codr1/roombook/internal/notify"
	"github.com/codr1/roombook/internal/teamtype"
)

const publishTimeout = 5 * time.Second

// ReservationRequest is the input to create and update.
type ReservationRequest struct {
	RoomID   int64
	TeamID   int64
	UserID   int64
	Interval Interval
	Override bool
}

type Service struct {
	db        *appdb.DB
	publisher notify.Publisher
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(database *appdb.DB, opts ...Option) *Service {
	s := &Service{
		db:        database,
		publisher: notify.LogPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReservation books a room for a team. A conflict is returned as a
// *ConflictError; with req.Override set and a strictly higher priority the
// conflicting reservations are deleted in the same transaction.
func (s *Service) CreateReservation(ctx context.Context, req ReservationRequest) (queries.ReservationDetail, error) {
	return s.write(ctx, 0, req)
}

// UpdateReservation moves reservation id to the requested room, team and
// interval. The reservation's own current interval is never a conflict.
func (s *Service) UpdateReservation(ctx context.Context, id int64, req ReservationRequest) (queries.ReservationDetail, error) {
	return s.write(ctx, id, req)
}

// write creates a reservation when id is zero and updates it otherwise.
func (s *Service) write(ctx context.Context, id int64, req ReservationRequest) (queries.ReservationDetail, error) {
	logger := log.Ctx(ctx)

	if err := req.Interval.Validate(); err != nil {
		return queries.ReservationDetail{}, err
	}

	var (
		saved     queries.ReservationDetail
		displaced []queries.ReservationDetail
	)
	err := s.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		if id != 0 {
			if _, err := q.GetReservationByID(ctx, id); err != nil {
				return lookupError("reservation", id, err)
			}
		}
		if _, err := q.GetRoomByID(ctx, req.RoomID); err != nil {
			return lookupError("room", req.RoomID, err)
		}
		team, err := q.GetTeamByID(ctx, req.TeamID)
		if err != nil {
			return lookupError("team", req.TeamID, err)
		}

		requester := teamTypeOf(team)
		if req.Interval.Start.After(requester.Horizon(s.now())) {
			return ErrBeyondHorizon
		}

		overlaps, err := FindOverlaps(ctx, q, req.RoomID, req.Interval, id)
		if err != nil {
			return err
		}

		decision := Resolve(requester, overlaps, req.Override)
		if err := decision.Err(); err != nil {
			return err
		}

		if decision.Outcome == OutcomeOverride {
			for _, incumbent := range decision.Conflicts {
				if _, err := q.DeleteReservation(ctx, incumbent.ID); err != nil {
					return storageError("delete overridden reservation", err)
				}
			}
			displaced = decision.Conflicts
		}

		savedID := id
		if id == 0 {
			savedID, err = q.CreateReservation(ctx, queries.CreateReservationParams{
				RoomID:    req.RoomID,
				TeamID:    req.TeamID,
				CreatedBy: req.UserID,
				StartTime: req.Interval.Start,
				EndTime:   req.Interval.End,
			})
			if err != nil {
				return storageError("create reservation", err)
			}
		} else {
			updated, err := q.UpdateReservation(ctx, queries.UpdateReservationParams{
				ID:        id,
				RoomID:    req.RoomID,
				TeamID:    req.TeamID,
				StartTime: req.Interval.Start,
				EndTime:   req.Interval.End,
			})
			if err != nil {
				return storageError("update reservation", err)
			}
			if updated == 0 {
				return NotFoundError{Entity: "reservation", ID: id}
			}
		}

		saved, err = q.GetReservationByID(ctx, savedID)
		if err != nil {
			return storageError("reload reservation", err)
		}
		return nil
	})
	if err != nil {
		return queries.ReservationDetail{}, classify(err)
	}

	if len(displaced) > 0 {
		logger.Info().
			Int64("reservation_id", saved.ID).
			Int64("team_id", saved.TeamID).
			Int("overridden", len(displaced)).
			Msg("Reservation committed with override")
		s.publishOverridden(ctx, saved, displaced)
	}
	return saved, nil
}

// DeleteReservation removes a single reservation.
func (s *Service) DeleteReservation(ctx context.Context, id int64) error {
	err := s.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		deleted, err := txdb.Queries.DeleteReservation(ctx, id)
		if err != nil {
			return storageError("delete reservation", err)
		}
		if deleted == 0 {
			return NotFoundError{Entity: "reservation", ID: id}
		}
		return nil
	})
	return classify(err)
}

// DeleteTeam deletes the team's reservations, its memberships and then the
// team itself as one unit. It returns the number of reservations removed.
func (s *Service) DeleteTeam(ctx context.Context, teamID int64) (int64, error) {
	var removed int64
	err := s.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries
		if _, err := q.GetTeamByID(ctx, teamID); err != nil {
			return lookupError("team", teamID, err)
		}

		var err error
		removed, err = q.DeleteReservationsByTeam(ctx, teamID)
		if err != nil {
			return storageError("delete team reservations", err)
		}
		if _, err := q.DeleteTeamMembers(ctx, teamID); err != nil {
			return storageError("delete team members", err)
		}
		if _, err := q.DeleteTeam(ctx, teamID); err != nil {
			return storageError("delete team", err)
		}
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	log.Ctx(ctx).Info().Int64("team_id", teamID).Int64("reservations_removed", removed).Msg("Team deleted")
	return removed, nil
}

// DeleteRoom refuses while any reservation on the room ends after now.
// Reservations that already ended are removed along with the room.
func (s *Service) DeleteRoom(ctx context.Context, roomID int64) error {
	err := s.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries
		if _, err := q.GetRoomByID(ctx, roomID); err != nil {
			return lookupError("room", roomID, err)
		}

		upcoming, err := q.CountRoomReservationsEndingAfter(ctx, queries.CountRoomReservationsEndingAfterParams{
			RoomID: roomID,
			After:  s.now(),
		})
		if err != nil {
			return storageError("count room reservations", err)
		}
		if upcoming > 0 {
			return ErrRoomInUse
		}

		if _, err := q.DeleteReservationsByRoom(ctx, roomID); err != nil {
			return storageError("delete room history", err)
		}
		if _, err := q.DeleteRoom(ctx, roomID); err != nil {
			return storageError("delete room", err)
		}
		return nil
	})
	return classify(err)
}

// PurgeEndedBefore deletes every reservation that ended at or before cutoff.
func (s *Service) PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		var err error
		purged, err = txdb.Queries.DeleteReservationsEndedBefore(ctx, cutoff)
		if err != nil {
			return storageError("purge reservations", err)
		}
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	return purged, nil
}

func (s *Service) publishOverridden(ctx context.Context, saved queries.ReservationDetail, displaced []queries.ReservationDetail) {
	logger := log.Ctx(ctx)
	// The request may already be finished; the events outlive it.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	now := s.now().UTC()
	for _, r := range displaced {
		event := notify.OverriddenEvent{
			Type:                    notify.EventReservationOverridden,
			ReservationID:           r.ID,
			RoomID:                  r.RoomID,
			RoomNumber:              r.RoomNumber,
			TeamID:                  r.TeamID,
			CreatedBy:               r.CreatedBy,
			Start:                   r.StartTime,
			End:                     r.EndTime,
			OverridingReservationID: saved.ID,
			OverridingTeamID:        saved.TeamID,
			OccurredAt:              now,
		}
		if err := s.publisher.PublishOverridden(pubCtx, event); err != nil {
			logger.Error().Err(err).
				Int64("reservation_id", r.ID).
				Int64("overriding_reservation_id", saved.ID).
				Msg("Failed to publish override event")
		}
	}
}

func teamTypeOf(team queries.Team) teamtype.TeamType {
	return teamtype.TeamType{
		Name:               team.TeamType,
		Priority:           team.Priority,
		AdvanceBookingDays: team.AdvanceBookingDays,
	}
}

func lookupError(entity string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFoundError{Entity: entity, ID: id}
	}
	return storageError("load "+entity, err)
}
