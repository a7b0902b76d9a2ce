package booking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/codr1/roombook/internal/db/queries"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Reservations are indexed by Unix nanoseconds, so only instants an int64
// count of nanoseconds can hold are storable.
var (
	MinStorableTime = time.Unix(0, math.MinInt64).UTC()
	MaxStorableTime = time.Unix(0, math.MaxInt64).UTC()
)

// Storable reports whether t lies within [MinStorableTime, MaxStorableTime].
func Storable(t time.Time) bool {
	return !t.Before(MinStorableTime) && !t.After(MaxStorableTime)
}

func (i Interval) Validate() error {
	if !Storable(i.Start) || !Storable(i.End) {
		return fmt.Errorf("%w: times must fall between %s and %s", ErrInvalidInterval,
			MinStorableTime.Format(time.RFC3339), MaxStorableTime.Format(time.RFC3339))
	}
	if !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps reports whether i and o share an instant. Touching intervals
// (i.End == o.Start) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// FindOverlaps returns the reservations on roomID that overlap interval,
// ordered by id. excludeID, when non-zero, is left out of the result so an
// update never conflicts with its own prior interval.
//
// Pass transaction-bound queries to get a consistent view.
func FindOverlaps(ctx context.Context, q *queries.Queries, roomID int64, interval Interval, excludeID int64) ([]queries.ReservationDetail, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	overlaps, err := q.ListOverlappingReservations(ctx, queries.ListOverlappingReservationsParams{
		RoomID:    roomID,
		StartTime: interval.Start,
		EndTime:   interval.End,
		ExcludeID: excludeID,
	})
	if err != nil {
		return nil, storageError("list overlapping reservations", err)
	}
	return overlaps, nil
}
