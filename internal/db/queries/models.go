package queries

import (
	"fmt"
	"time"
)

type TeamType struct {
	Name               string
	Priority           int64
	AdvanceBookingDays int64
	Elevated           bool
}

type User struct {
	ID        int64
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

// Team carries the priority columns of its team type.
type Team struct {
	ID                 int64
	Name               string
	TeamType           string
	Priority           int64
	AdvanceBookingDays int64
	CreatedAt          time.Time
}

type Room struct {
	ID        int64
	Number    string
	CreatedAt time.Time
}

type Reservation struct {
	ID        int64
	RoomID    int64
	TeamID    int64
	CreatedBy int64
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
}

// ReservationDetail is a reservation joined with its room and team.
type ReservationDetail struct {
	Reservation
	RoomNumber   string
	TeamName     string
	TeamType     string
	TeamPriority int64
}

// timestampLayout preserves the caller's UTC offset on round trip.
const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", raw, err)
	}
	return t, nil
}
