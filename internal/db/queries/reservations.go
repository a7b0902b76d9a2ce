package queries

import (
	"context"
	"database/sql"
	"time"
)

const reservationDetailColumns = `r.id, r.room_id, r.team_id, r.created_by, r.start_time, r.end_time, r.created_at,
    rm.number, t.name, t.team_type, tt.priority
FROM reservations r
JOIN rooms rm ON rm.id = r.room_id
JOIN teams t ON t.id = r.team_id
JOIN team_types tt ON tt.name = t.team_type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservationDetail(row rowScanner) (ReservationDetail, error) {
	var (
		i          ReservationDetail
		start, end string
	)
	if err := row.Scan(
		&i.ID, &i.RoomID, &i.TeamID, &i.CreatedBy, &start, &end, &i.CreatedAt,
		&i.RoomNumber, &i.TeamName, &i.TeamType, &i.TeamPriority,
	); err != nil {
		return ReservationDetail{}, err
	}
	var err error
	if i.StartTime, err = parseTimestamp(start); err != nil {
		return ReservationDetail{}, err
	}
	if i.EndTime, err = parseTimestamp(end); err != nil {
		return ReservationDetail{}, err
	}
	return i, nil
}

func scanReservationDetails(rows *sql.Rows) ([]ReservationDetail, error) {
	defer rows.Close()
	items := make([]ReservationDetail, 0)
	for rows.Next() {
		i, err := scanReservationDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CreateReservationParams struct {
	RoomID    int64
	TeamID    int64
	CreatedBy int64
	StartTime time.Time
	EndTime   time.Time
}

const createReservation = `INSERT INTO reservations (room_id, team_id, created_by, start_time, end_time, start_ns, end_ns)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// CreateReservation inserts a reservation and returns its id.
func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createReservation,
		arg.RoomID,
		arg.TeamID,
		arg.CreatedBy,
		formatTimestamp(arg.StartTime),
		formatTimestamp(arg.EndTime),
		arg.StartTime.UnixNano(),
		arg.EndTime.UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

type UpdateReservationParams struct {
	ID        int64
	RoomID    int64
	TeamID    int64
	StartTime time.Time
	EndTime   time.Time
}

const updateReservation = `UPDATE reservations
SET room_id = ?, team_id = ?, start_time = ?, end_time = ?, start_ns = ?, end_ns = ?
WHERE id = ?`

func (q *Queries) UpdateReservation(ctx context.Context, arg UpdateReservationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateReservation,
		arg.RoomID,
		arg.TeamID,
		formatTimestamp(arg.StartTime),
		formatTimestamp(arg.EndTime),
		arg.StartTime.UnixNano(),
		arg.EndTime.UnixNano(),
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getReservationByID = `SELECT ` + reservationDetailColumns + `
WHERE r.id = ?`

func (q *Queries) GetReservationByID(ctx context.Context, id int64) (ReservationDetail, error) {
	return scanReservationDetail(q.db.QueryRowContext(ctx, getReservationByID, id))
}

type ListOverlappingReservationsParams struct {
	RoomID    int64
	StartTime time.Time
	EndTime   time.Time
	// ExcludeID omits one reservation from the result; zero excludes nothing.
	ExcludeID int64
}

// Half-open overlap: existing.start < end AND start < existing.end.
const listOverlappingReservations = `SELECT ` + reservationDetailColumns + `
WHERE r.room_id = ?
  AND r.start_ns < ?
  AND r.end_ns > ?
  AND r.id <> ?
ORDER BY r.id`

func (q *Queries) ListOverlappingReservations(ctx context.Context, arg ListOverlappingReservationsParams) ([]ReservationDetail, error) {
	rows, err := q.db.QueryContext(ctx, listOverlappingReservations,
		arg.RoomID,
		arg.EndTime.UnixNano(),
		arg.StartTime.UnixNano(),
		arg.ExcludeID,
	)
	if err != nil {
		return nil, err
	}
	return scanReservationDetails(rows)
}

const listReservationsByRoom = `SELECT ` + reservationDetailColumns + `
WHERE r.room_id = ?
ORDER BY r.start_ns, r.id`

func (q *Queries) ListReservationsByRoom(ctx context.Context, roomID int64) ([]ReservationDetail, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsByRoom, roomID)
	if err != nil {
		return nil, err
	}
	return scanReservationDetails(rows)
}

const deleteReservation = `DELETE FROM reservations WHERE id = ?`

func (q *Queries) DeleteReservation(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteReservationsByTeam = `DELETE FROM reservations WHERE team_id = ?`

func (q *Queries) DeleteReservationsByTeam(ctx context.Context, teamID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservationsByTeam, teamID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteReservationsByRoom = `DELETE FROM reservations WHERE room_id = ?`

func (q *Queries) DeleteReservationsByRoom(ctx context.Context, roomID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservationsByRoom, roomID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteReservationsEndedBefore = `DELETE FROM reservations WHERE end_ns <= ?`

func (q *Queries) DeleteReservationsEndedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservationsEndedBefore, before.UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countReservationsByTeam = `SELECT COUNT(1) FROM reservations WHERE team_id = ?`

func (q *Queries) CountReservationsByTeam(ctx context.Context, teamID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countReservationsByTeam, teamID).Scan(&count)
	return count, err
}

const countReservations = `SELECT COUNT(1) FROM reservations`

func (q *Queries) CountReservations(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countReservations).Scan(&count)
	return count, err
}

type CountRoomReservationsEndingAfterParams struct {
	RoomID int64
	After  time.Time
}

const countRoomReservationsEndingAfter = `SELECT COUNT(1) FROM reservations WHERE room_id = ? AND end_ns > ?`

func (q *Queries) CountRoomReservationsEndingAfter(ctx context.Context, arg CountRoomReservationsEndingAfterParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countRoomReservationsEndingAfter, arg.RoomID, arg.After.UnixNano()).Scan(&count)
	return count, err
}
